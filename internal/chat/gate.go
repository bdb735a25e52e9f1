package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/transcript"
)

// Gate is the subscription banner blocking new messages.
type Gate string

const (
	GateNone              Gate = ""
	GateStartSubscription Gate = "start-subscription"
	GateExpired           Gate = "expired"
)

// Gate evaluates the subscription state at now. Only an active plan gates:
// with an end time the plan expires once it passes, without one the user
// may send max_free_chat messages.
func (c *Controller) Gate(now time.Time) Gate {
	c.mu.Lock()
	sub := c.subscription
	c.mu.Unlock()

	if sub == nil || !bool(sub.PlanActive) {
		return GateNone
	}
	if end, ok := sub.Ends(); ok {
		if end.Before(now) {
			return GateExpired
		}
		return GateNone
	}
	if c.cfg.MaxFreeChat <= 0 {
		return GateNone
	}
	if transcript.CountRole(c.store.Snapshot().Entries, transcript.RoleUser) >= c.cfg.MaxFreeChat {
		return GateStartSubscription
	}
	return GateNone
}

// RefreshSubscription reloads the plan state. Failures keep the previous
// state and are only logged.
func (c *Controller) RefreshSubscription(ctx context.Context) {
	conv := c.Conversation()
	if conv == "" {
		return
	}
	sub, err := c.platform.CheckSubscription(ctx, c.cfg.BotCode, conv)
	if err != nil {
		c.logger.Warn("subscription check failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.subscription = sub
	c.mu.Unlock()
}
