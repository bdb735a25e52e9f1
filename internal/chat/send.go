package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/preview"
	"github.com/matheus3301/twin/internal/segment"
	"github.com/matheus3301/twin/internal/transcript"
)

// Send shows text as a pending user message with a bot typing placeholder
// and queues it for delivery. The outcome arrives through the outbox events.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	conv := c.Conversation()
	if conv == "" {
		return ErrNotReady
	}
	if c.store.HasTransient(transcript.RoleBot) || c.driver.Busy() {
		return ErrBotBusy
	}
	if g := c.Gate(time.Now()); g != GateNone {
		return &GateError{Gate: g, SubscribeURL: c.cfg.SubscribeURL}
	}

	url := segment.FirstURL(text)
	snap := c.store.Dispatch(
		transcript.RemoveTransient(transcript.RoleUser),
		transcript.AppendPending(transcript.Entry{
			Role:    transcript.RoleUser,
			Content: text,
			HTML:    segment.Linkify(text, segment.HTMLAnchor),
			URL:     url,
		}),
		transcript.AppendTransient(transcript.RoleBot, ""),
	)
	userID := snap.Entries[len(snap.Entries)-2].ID

	if url != "" && c.previewer != nil {
		runCtx := c.runContext()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if p := c.previewer.Fetch(runCtx, url); p != nil && runCtx.Err() == nil {
				c.store.Dispatch(transcript.AttachPreview(userID, p))
			}
		}()
	}

	// Registered before queueing: the delivery result can arrive first.
	id := uuid.NewString()
	c.mu.Lock()
	c.pending[id] = struct{}{}
	c.mu.Unlock()
	if _, err := c.outbox.Enqueue(id, c.cfg.BotCode, conv, text); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.sendFailed(err)
		return err
	}
	c.logger.Debug("message queued", zap.String("client_msg_id", id))
	return nil
}

// PreviewURL resolves the preview of the first link in a draft.
func (c *Controller) PreviewURL(ctx context.Context, text string) (string, *preview.Preview) {
	url := segment.FirstURL(text)
	if url == "" || c.previewer == nil {
		return url, nil
	}
	return url, c.previewer.Fetch(ctx, url)
}

func (c *Controller) handleOutbox(evt bus.Event) {
	res, ok := evt.Payload.(bus.OutboxResult)
	if !ok {
		return
	}
	c.mu.Lock()
	_, mine := c.pending[res.ClientMsgID]
	delete(c.pending, res.ClientMsgID)
	c.mu.Unlock()
	if !mine {
		return
	}

	if res.Err != nil {
		c.sendFailed(res.Err)
		return
	}
	// The bot placeholder stays until the live answer replaces it.
	c.store.Dispatch(transcript.MarkRoleSettled(transcript.RoleUser))
}

func (c *Controller) sendFailed(err error) {
	c.logger.Warn("send failed", zap.Error(err))
	c.store.Dispatch(
		transcript.MarkRoleSettled(transcript.RoleUser),
		transcript.RemoveTransient(transcript.RoleBot),
		transcript.AppendFinal(transcript.Apology(platform.GenericErrorText)),
	)
	c.notifyError(err)
}
