package events

// KindMessageSpoken identifies a message spoken to the user.
const KindMessageSpoken Kind = "assistant_speech.message_spoken"

// MessageSpoken carries the text that was spoken.
type MessageSpoken struct {
	Base
	Message string `json:"message"`
}

// NewMessageSpoken creates a message spoken event.
func NewMessageSpoken(message string) MessageSpoken {
	return MessageSpoken{Base: NewBase(KindMessageSpoken), Message: message}
}
