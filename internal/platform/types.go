// Package platform is the HTTP client for the digital-twin chat platform.
package platform

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// SenderType is who authored a server message.
type SenderType string

const (
	SenderBot  SenderType = "bot"
	SenderUser SenderType = "user"
)

// envelope wraps every platform response.
type envelope[T any] struct {
	StatCode string `json:"stat_code"`
	StatMsg  string `json:"stat_msg"`
	Data     T      `json:"data"`
}

// Bot is the persona being chatted with.
type Bot struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	WelcomeMsg string `json:"welcome_msg"`
	Avatar     string `json:"avatar,omitempty"`
}

// ConversationInit is returned when a conversation is opened.
type ConversationInit struct {
	ConvCode  string `json:"conv_code"`
	CentToken string `json:"cent_token"`
}

// Message is one persisted chat message.
type Message struct {
	MsgCode     string     `json:"msg_code"`
	SenderType  SenderType `json:"sender_type"`
	Content     string     `json:"content"`
	ContentType string     `json:"content_type,omitempty"`
	Rating      int        `json:"rating,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
}

// IsBot reports whether the message was authored by the bot. Anything that
// is not explicitly a user message is treated as a bot answer.
func (m Message) IsBot() bool {
	return m.SenderType != SenderUser
}

// Time parses CreatedAt, returning the zero time when absent or malformed.
func (m Message) Time() time.Time {
	t, _ := time.Parse(time.RFC3339, m.CreatedAt)
	return t
}

// Pagination carries the history links.
type Pagination struct {
	Prev          string `json:"prev"`
	Next          string `json:"next"`
	TotalMessages int    `json:"total_messages"`
}

// HistoryPage is one page of conversation history, newest first.
type HistoryPage struct {
	Messages   []Message
	Pagination Pagination
}

type historyData struct {
	Messages struct {
		Data       []Message  `json:"data"`
		Pagination Pagination `json:"pagination"`
	} `json:"messages"`
}

// HistoryQuery selects a history page.
type HistoryQuery struct {
	Limit int
	Next  string
	Prev  string
	Order string
}

// ChatRequest is the body of a send.
type ChatRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// Feedback is the body of a feedback submission.
type Feedback struct {
	Feedback     string `json:"feedback"`
	FeedbackDesc string `json:"feedback_desc"`
}

// Subscription is the user's plan state for a bot.
type Subscription struct {
	PlanActive Flag   `json:"subscribe_plan_status"`
	EndTime    string `json:"end_time,omitempty"`
}

// Ends returns the parsed end time and whether one is set.
func (s Subscription) Ends() (time.Time, bool) {
	if s.EndTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s.EndTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Flag decodes booleans sent as true/false, 0/1 or "0"/"1".
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	switch string(b) {
	case "", "null", "false", "0":
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("subscribe_plan_status: unexpected value %q", b)
	}
	*f = n != 0
	return nil
}
