package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published inside the daemon.
const (
	KindStatusChanged     = "session.status_changed"
	KindTranscriptChanged = "transcript.changed"
	KindLiveMessage       = "live.message"
	KindHistoryPage       = "history.page"
	KindMessageRated      = "message.rated"
	KindOutboxSent        = "outbox.sent"
	KindOutboxFailed      = "outbox.failed"
	KindSyncIngested      = "sync.ingested"
	KindNotifyError       = "notify.error"
	KindNotifyInfo        = "notify.info"
)

// Notify builds a toast event. Level is "error" or "info".
func Notify(level, text string) Event {
	kind := KindNotifyInfo
	if level == "error" {
		kind = KindNotifyError
	}
	return Event{Kind: kind, Timestamp: time.Now(), Payload: text}
}
