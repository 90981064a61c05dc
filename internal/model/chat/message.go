package chat

// Role identifies who authored a message in the widget transcript.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// SourceDocument is a citation attached to a bot answer.
type SourceDocument struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Message is one turn of the conversation. The role travels under "type"
// because that is the key the chat backend reads.
type Message struct {
	Role            Role             `json:"type"`
	Content         string           `json:"content"`
	SourceDocuments []SourceDocument `json:"sourceDocuments,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m.SourceDocuments != nil {
		m.SourceDocuments = append([]SourceDocument(nil), m.SourceDocuments...)
	}
	return m
}

// CloneMessages deep-copies a transcript.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	copied := make([]Message, len(messages))
	for i, msg := range messages {
		copied[i] = msg.Clone()
	}
	return copied
}
