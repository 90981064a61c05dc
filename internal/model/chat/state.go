package chat

// ConversationState is everything the chat widget renders.
type ConversationState struct {
	Messages   []Message `json:"messages"`
	IsOpen     bool      `json:"isOpen"`
	IsLoading  bool      `json:"isLoading"`
	DraftInput string    `json:"draftInput"`
}

// Clone returns a copy that shares no slices with the receiver.
func (s ConversationState) Clone() ConversationState {
	s.Messages = CloneMessages(s.Messages)
	return s
}

// Snapshot returns the persisted subset of the state.
func (s ConversationState) Snapshot() Snapshot {
	return Snapshot{IsOpen: s.IsOpen, Messages: CloneMessages(s.Messages)}
}

// Snapshot is the part of the state that survives a reload.
type Snapshot struct {
	IsOpen   bool      `json:"isOpen"`
	Messages []Message `json:"messages"`
}

// Request is the body POSTed to the chat backend.
type Request struct {
	Message      string    `json:"message"`
	Conversation []Message `json:"conversation"`
}
