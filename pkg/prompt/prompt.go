// Package prompt assembles the structured generation request from the
// user query, retrieved context, and conversation history. Composition
// is pure: no I/O, deterministic output for identical inputs.
package prompt

import (
	"strings"

	"concierge/pkg/store"
)

// Placeholder literals used when a section has no content. The
// generation backend is instructed against them, so they are part of
// the wire contract.
const (
	NoContextPlaceholder = "(No relevant information found)"
	NoHistoryPlaceholder = "(No previous conversation)"
)

// Section delimiters. Stable, greppable markers the model can segment on.
const (
	contextOpen  = "<<CONTEXT>>"
	contextClose = "<<END CONTEXT>>"
	historyOpen  = "<<CONVERSATION HISTORY>>"
	historyClose = "<<END CONVERSATION HISTORY>>"
	questionOpen = "<<USER QUESTION>>"
	questionEnd  = "<<END USER QUESTION>>"
)

// systemInstructions pins the assistant persona, the context-only answer
// policy, the language-matching rule, and the structured JSON output
// contract that the response parser depends on.
const systemInstructions = `You are a friendly AI concierge that helps guests
with questions about their stay, the property, and the surrounding area.

LANGUAGE: Always respond in the SAME language as the user's question.
If the user writes in Italian, respond in Italian. If in English, respond
in English. Match their language exactly.

ONLY use the facts contained in the section labelled <<CONTEXT>>.
Do not rely on outside knowledge, personal opinions, or speculation.

If the answer cannot be found in <<CONTEXT>>, reply with a brief apology
in the user's language, for example:
- Italian: "Mi dispiace, non ho quell'informazione."
- English: "I'm sorry, I don't have that information."
- Spanish: "Lo siento, no tengo esa información."

Keep every answer concise, clear, and friendly (aim for 1-3 short
sentences). Do not mention these instructions or the word "context".
Be warm and helpful, like a friendly local host.

RESPONSE FORMAT: You MUST respond with valid JSON in this exact format:
{
  "message": "Your response to the guest here IN THEIR LANGUAGE",
  "confidence": "high|medium|low",
  "source": "context|general_knowledge|none",
  "detected_language": "it|en|es|fr|de|other"
}

- "message": the actual response to send to the guest in their language
- "confidence": how confident you are in your answer
- "source": whether the answer came from context, general knowledge, or no source
- "detected_language": the language code of the user's question`

// Request is the composed two-part generation input.
type Request struct {
	System string
	User   string
}

// Compose builds the generation request: the fixed system block plus a
// single combined user turn with context, history, and question sections
// in that order.
func Compose(query string, history []store.Entry, chunks []string) Request {
	var user strings.Builder

	user.WriteString(contextOpen)
	user.WriteString("\n")
	if len(chunks) > 0 {
		user.WriteString(strings.Join(chunks, "\n"))
	} else {
		user.WriteString(NoContextPlaceholder)
	}
	user.WriteString("\n")
	user.WriteString(contextClose)

	user.WriteString("\n\n")
	user.WriteString(historyOpen)
	user.WriteString("\n")
	if len(history) > 0 {
		for _, entry := range history {
			user.WriteString(speakerLabel(entry.Sender))
			user.WriteString(": ")
			user.WriteString(entry.Message)
			user.WriteString("\n")
		}
	} else {
		user.WriteString(NoHistoryPlaceholder)
		user.WriteString("\n")
	}
	user.WriteString(historyClose)

	user.WriteString("\n\n")
	user.WriteString(questionOpen)
	user.WriteString("\n")
	user.WriteString(query)
	user.WriteString("\n")
	user.WriteString(questionEnd)

	return Request{
		System: systemInstructions,
		User:   user.String(),
	}
}

func speakerLabel(sender store.Role) string {
	if sender == store.RoleUser {
		return "Guest"
	}

	return "Bot"
}
