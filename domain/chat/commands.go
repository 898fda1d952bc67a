package chat

// Commands carried from the transport layer into the chat service.

type CreateConversationCommand struct {
	ParticipantIDs []UserID
	Name           string
	Description    string
	IsGroup        bool
	CreatorID      UserID
}

type UpdateConversationCommand struct {
	Name        *string
	Description *string
	AvatarURL   *string
}

type CreateMessageCommand struct {
	ConversationID ConversationID
	SenderID       UserID
	Content        string
	ContentType    ContentType
	MediaURL       string
}
