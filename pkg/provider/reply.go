package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// StructuredReply is the machine-readable shape the generation backend
// is instructed to emit. Only Message reaches the end user; the rest is
// diagnostic.
type StructuredReply struct {
	Message          string `json:"message"`
	Confidence       string `json:"confidence"`
	Source           string `json:"source"`
	DetectedLanguage string `json:"detected_language"`
}

// ErrMalformedReply reports generation output that could not be parsed
// into a usable message, even after salvage.
var ErrMalformedReply = errors.New("malformed structured reply")

// salvagePattern extracts the message field from output that is not
// valid JSON but still contains the expected key.
var salvagePattern = regexp.MustCompile(`"message"\s*:\s*"([^"]*)"`)

// ParseStructuredReply parses raw model output. Strict JSON decoding is
// attempted first; on failure a best-effort pattern match recovers the
// message field alone, leaving the diagnostic fields empty. An empty
// message is a failure in either path.
func ParseStructuredReply(raw string) (StructuredReply, error) {
	var reply StructuredReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		salvaged, ok := salvageMessage(raw)
		if !ok {
			return StructuredReply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		reply = StructuredReply{Message: salvaged}
	}

	if strings.TrimSpace(reply.Message) == "" {
		return StructuredReply{}, fmt.Errorf("%w: empty message field", ErrMalformedReply)
	}

	return reply, nil
}

func salvageMessage(raw string) (string, bool) {
	match := salvagePattern.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}

	return match[1], true
}
