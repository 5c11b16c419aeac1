// Package whatsapp implements the WhatsApp Cloud API transport: webhook
// payload decoding, the verification handshake, and outbound delivery
// through the Graph API.
package whatsapp

import "encoding/json"

// Outcome classifies one webhook payload.
type Outcome string

const (
	// OutcomeMessage means a processable text message was extracted.
	OutcomeMessage Outcome = "message"
	// OutcomeSkip means the payload is valid but not actionable
	// (delivery receipts, status updates, non-text messages).
	OutcomeSkip Outcome = "skip"
	// OutcomeInvalid means the body was not parseable JSON.
	OutcomeInvalid Outcome = "invalid"
)

// Message is the decoded inbound text message.
type Message struct {
	From string
	Text string
}

// webhookPayload mirrors the Cloud API event envelope down to the
// fields the relay needs.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Decode inspects one webhook body. It yields OutcomeMessage only when
// the payload carries at least one change whose value holds a non-empty
// messages list and the first message is of type "text" with a sender
// and a body. Everything else is a skip, not an error: the Cloud API
// posts receipts and media events on the same endpoint.
func Decode(body []byte) (Message, Outcome) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Message{}, OutcomeInvalid
	}

	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return Message{}, OutcomeSkip
	}

	messages := payload.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return Message{}, OutcomeSkip
	}

	first := messages[0]
	if first.Type != "text" || first.From == "" || first.Text.Body == "" {
		return Message{}, OutcomeSkip
	}

	return Message{From: first.From, Text: first.Text.Body}, OutcomeMessage
}
