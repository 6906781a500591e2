package domain

// QueuedMessage is one outgoing speech payload. Producers create it,
// the speech queue owns it until the worker dequeues it, and it is
// discarded after the send — no retry, no persistence.
//
// A plain text message carries only Text; a structured message carries
// an explicit Kind plus pass-through Fields from the producer.
type QueuedMessage struct {
	Kind   string
	Text   string
	Fields map[string]any
}

// NewTextMessage wraps a plain string as a chat message.
func NewTextMessage(text string) QueuedMessage {
	return QueuedMessage{Kind: "chat", Text: text}
}

// NewStructuredMessage builds a message with an explicit kind and extra
// wire fields. The reserved "type" and "text" keys in fields are ignored.
func NewStructuredMessage(kind, text string, fields map[string]any) QueuedMessage {
	return QueuedMessage{Kind: kind, Text: text, Fields: fields}
}

// WirePayload normalizes the message into the speaker wire shape:
// {"type": <kind>, "text": <text>, ...extra fields}. An empty kind
// defaults to "chat".
func (m QueuedMessage) WirePayload() map[string]any {
	payload := make(map[string]any, len(m.Fields)+2)
	for k, v := range m.Fields {
		if k == "type" || k == "text" {
			continue
		}
		payload[k] = v
	}

	kind := m.Kind
	if kind == "" {
		kind = "chat"
	}
	payload["type"] = kind
	payload["text"] = m.Text
	return payload
}

// Truncate shortens s to at most max runes for log output. Rune-based
// so multibyte spoken text is never cut mid-character.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
