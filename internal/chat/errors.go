package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned before a conversation has been opened.
	ErrNotReady = errors.New("chat: conversation not ready")
	// ErrBotBusy is returned while the bot is still answering.
	ErrBotBusy = errors.New("chat: bot is still answering")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrNoSuchTurn is returned for an out of range turn index.
	ErrNoSuchTurn = errors.New("chat: no such turn")
	// ErrNotRateable is returned for user turns and turns without server messages.
	ErrNotRateable = errors.New("chat: turn cannot be rated")
	// ErrNoMessages is returned when feedback names no message.
	ErrNoMessages = errors.New("chat: no messages selected")
)

// GateError blocks a send until the user subscribes.
type GateError struct {
	Gate         Gate
	SubscribeURL string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("chat: subscription required (%s)", e.Gate)
}

// BatchError reports the messages a batch operation failed on.
type BatchError struct {
	Op     string
	Failed []string
	Total  int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("chat: %s failed for %d of %d messages: %v", e.Op, len(e.Failed), e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
