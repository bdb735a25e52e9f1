package bus

import "github.com/matheus3301/twin/internal/platform"

// LiveMessage is the payload of KindLiveMessage.
type LiveMessage struct {
	ConvCode string
	Message  platform.Message
}

// HistoryPage is the payload of KindHistoryPage: one fetched page in
// chronological order.
type HistoryPage struct {
	ConvCode string
	Messages []platform.Message
}

// MessageRated is the payload of KindMessageRated.
type MessageRated struct {
	ConvCode string
	Codes    []string
	Value    int
}

// OutboxResult is the payload of KindOutboxSent and KindOutboxFailed.
// Err is nil on success.
type OutboxResult struct {
	ClientMsgID string
	ConvCode    string
	Body        string
	Err         error
}
