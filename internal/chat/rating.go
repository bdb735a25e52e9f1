package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/transcript"
)

// feedbackLimit bounds concurrent feedback submissions.
const feedbackLimit = 4

// RateTurn rates every server message of a bot turn, one at a time. Ratings
// that succeeded are kept even when others fail.
func (c *Controller) RateTurn(ctx context.Context, turnIndex, value int) error {
	conv := c.Conversation()
	if conv == "" {
		return ErrNotReady
	}
	turns := c.Turns()
	if turnIndex < 0 || turnIndex >= len(turns) {
		return ErrNoSuchTurn
	}
	turn := turns[turnIndex]
	codes := turn.Codes()
	if turn.Role != transcript.RoleBot || len(codes) == 0 {
		return ErrNotRateable
	}

	var (
		rated  []string
		failed []string
		errs   []error
	)
	for _, code := range codes {
		if err := c.platform.SubmitRating(ctx, c.cfg.BotCode, conv, code, value); err != nil {
			failed = append(failed, code)
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
			continue
		}
		rated = append(rated, code)
	}

	if len(rated) > 0 {
		c.store.Dispatch(transcript.SetRating(rated, value))
		c.bus.Publish(bus.Event{
			Kind:      bus.KindMessageRated,
			Timestamp: time.Now(),
			Payload:   bus.MessageRated{ConvCode: conv, Codes: rated, Value: value},
		})
	}
	if len(errs) > 0 {
		err := &BatchError{Op: "rating", Failed: failed, Total: len(codes), Err: errors.Join(errs...)}
		c.notifyError(errs[0])
		return err
	}
	return nil
}

// Feedback sends the same written feedback for each message concurrently.
func (c *Controller) Feedback(ctx context.Context, codes []string, feedback, desc string) error {
	conv := c.Conversation()
	if conv == "" {
		return ErrNotReady
	}
	if len(codes) == 0 {
		return ErrNoMessages
	}

	var (
		mu     sync.Mutex
		failed []string
		errs   []error
	)
	var g errgroup.Group
	g.SetLimit(feedbackLimit)
	fb := platform.Feedback{Feedback: feedback, FeedbackDesc: desc}
	for _, code := range codes {
		g.Go(func() error {
			if err := c.platform.SubmitFeedback(ctx, c.cfg.BotCode, conv, code, fb); err != nil {
				mu.Lock()
				failed = append(failed, code)
				errs = append(errs, fmt.Errorf("%s: %w", code, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return &BatchError{Op: "feedback", Failed: failed, Total: len(codes), Err: errors.Join(errs...)}
	}
	return nil
}
