package rpc

import (
	"encoding/json"

	"github.com/matheus3301/twin/internal/preview"
)

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Session        string `json:"session"`
	Status         string `json:"status"`
	BotCode        string `json:"bot_code"`
	BotName        string `json:"bot_name,omitempty"`
	ConvCode       string `json:"conv_code,omitempty"`
	UptimeMs       int64  `json:"uptime_ms"`
	CachedMessages int    `json:"cached_messages"`
	LastSyncedAtMs int64  `json:"last_synced_at_ms,omitempty"`
	Revealing      bool   `json:"revealing"`
	Gate           string `json:"gate,omitempty"`
}

// Entry is one transcript bubble.
type Entry struct {
	ID           int64            `json:"id"`
	Role         string           `json:"role"`
	Kind         string           `json:"kind"`
	Content      string           `json:"content"`
	HTML         string           `json:"html,omitempty"`
	SequenceCode string           `json:"sequence_code,omitempty"`
	Segment      int              `json:"segment"`
	Transient    bool             `json:"transient,omitempty"`
	URL          string           `json:"url,omitempty"`
	Preview      *preview.Preview `json:"preview,omitempty"`
	Rating       int              `json:"rating,omitempty"`
}

// Turn is a run of consecutive entries by one role.
type Turn struct {
	Index   int      `json:"index"`
	Role    string   `json:"role"`
	Entries []Entry  `json:"entries"`
	Codes   []string `json:"codes,omitempty"`
	Rating  int      `json:"rating,omitempty"`
	Pending bool     `json:"pending,omitempty"`
}

// Cursor is the pagination state.
type Cursor struct {
	Forward   string `json:"forward,omitempty"`
	Backward  string `json:"backward,omitempty"`
	PageIndex int    `json:"page_index"`
	Loading   bool   `json:"loading"`
	HasMore   bool   `json:"has_more"`
	Loaded    int    `json:"loaded"`
	Total     int    `json:"total"`
}

type GetTranscriptRequest struct{}

type GetTranscriptResponse struct {
	Version      uint64  `json:"version"`
	BotName      string  `json:"bot_name,omitempty"`
	BotAvatar    string  `json:"bot_avatar,omitempty"`
	ConvCode     string  `json:"conv_code,omitempty"`
	Entries      []Entry `json:"entries"`
	Turns        []Turn  `json:"turns"`
	Cursor       Cursor  `json:"cursor"`
	Gate         string  `json:"gate,omitempty"`
	SubscribeURL string  `json:"subscribe_url,omitempty"`
}

type LoadOlderRequest struct {
	SentinelVisible bool `json:"sentinel_visible"`
}

// LoadOlderResponse reports whether a page was fetched. Reason explains a
// skipped request: "not_visible", "busy" or "exhausted".
type LoadOlderResponse struct {
	Loaded bool   `json:"loaded"`
	Reason string `json:"reason,omitempty"`
	Cursor Cursor `json:"cursor"`
}

type SendTextRequest struct {
	Text string `json:"text"`
}

// SendTextResponse is not accepted when the subscription gate blocks the
// message; Gate and SubscribeURL then describe the banner to show.
type SendTextResponse struct {
	Accepted     bool   `json:"accepted"`
	Gate         string `json:"gate,omitempty"`
	SubscribeURL string `json:"subscribe_url,omitempty"`
}

type RateTurnRequest struct {
	Turn  int `json:"turn"`
	Value int `json:"value"`
}

type RateTurnResponse struct {
	Rated  int      `json:"rated"`
	Failed []string `json:"failed,omitempty"`
}

type SendFeedbackRequest struct {
	Codes       []string `json:"codes"`
	Feedback    string   `json:"feedback"`
	Description string   `json:"description,omitempty"`
}

type SendFeedbackResponse struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}

type SearchMessagesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	// All searches every cached conversation instead of the open one.
	All bool `json:"all,omitempty"`
}

type SearchResult struct {
	ConvCode   string `json:"conv_code"`
	MsgCode    string `json:"msg_code"`
	SenderType string `json:"sender_type"`
	Content    string `json:"content"`
	Snippet    string `json:"snippet"`
	SentAtMs   int64  `json:"sent_at_ms,omitempty"`
}

type SearchMessagesResponse struct {
	Results []SearchResult `json:"results"`
}

type PreviewURLRequest struct {
	Text string `json:"text"`
}

type PreviewURLResponse struct {
	URL     string           `json:"url,omitempty"`
	Preview *preview.Preview `json:"preview,omitempty"`
}

type ReconnectRequest struct{}

type ReconnectResponse struct {
	Status string `json:"status"`
}

// WatchEventsRequest filters events by kind prefix; empty means all.
type WatchEventsRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// Event is one bus event forwarded to a client.
type Event struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	OccurredAtMs int64           `json:"occurred_at_ms"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload is the payload of session.status_changed events.
type StatusPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TranscriptPayload is the payload of transcript.changed events.
type TranscriptPayload struct {
	Version uint64 `json:"version"`
	Entries int    `json:"entries"`
}

// NotifyPayload is the payload of notify.* events.
type NotifyPayload struct {
	Text string `json:"text"`
}
