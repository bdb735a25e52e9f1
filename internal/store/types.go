package store

// Message is a cached server message.
type Message struct {
	ID         int64
	ConvCode   string
	MsgCode    string
	SenderType string
	Content    string
	Rating     int
	SentAt     int64
}

// Outbox statuses.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is an outgoing chat message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	BotCode      string
	ConvCode     string
	Body         string
	Status       string
	ErrorMessage string
	CreatedAt    int64
}

// SearchResult holds a message with a highlighted snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
