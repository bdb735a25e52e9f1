package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/history"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/segment"
	"github.com/matheus3301/twin/internal/transcript"
)

// Open loads the newest history page of the conversation.
func (c *Controller) Open(ctx context.Context) error {
	if c.Conversation() == "" {
		return ErrNotReady
	}
	req, err := c.cursor.Begin()
	if err != nil {
		return err
	}
	return c.loadPage(ctx, req)
}

// LoadOlder loads the next older page when the top of the transcript is
// visible. It returns history.ErrNotVisible, history.ErrBusy or
// history.ErrExhausted when no request is made.
func (c *Controller) LoadOlder(ctx context.Context, sentinelVisible bool) error {
	if c.Conversation() == "" {
		return ErrNotReady
	}
	req, err := c.cursor.Trigger(sentinelVisible)
	if err != nil {
		return err
	}
	return c.loadPage(ctx, req)
}

func (c *Controller) loadPage(ctx context.Context, req history.Request) error {
	page, err := c.platform.ConversationDetail(ctx, c.cfg.BotCode, req.Conversation, platform.HistoryQuery{
		Limit: c.cfg.PageSize,
		Next:  req.Next,
		Order: "desc",
	})
	if err != nil {
		c.metrics.HistoryPage("error")
		if ferr := c.cursor.Fail(req); ferr != nil {
			c.logger.Debug("cursor rollback skipped", zap.Error(ferr))
		}
		return fmt.Errorf("load history page %d: %w", req.PageIndex, err)
	}

	msgs := slices.Clone(page.Messages)
	slices.Reverse(msgs)
	entries := c.convert(ctx, msgs)

	total := page.Pagination.TotalMessages
	err = c.cursor.Complete(req, len(msgs), total, page.Pagination.Prev, page.Pagination.Next)
	switch {
	case errors.Is(err, history.ErrStale):
		c.logger.Debug("discarding page of a closed session", zap.String("conv_code", req.Conversation))
		return nil
	case err != nil:
		return fmt.Errorf("complete history page: %w", err)
	}

	c.mu.Lock()
	welcome := c.welcome
	c.mu.Unlock()

	switch {
	case req.PageIndex == 0 && len(msgs) == 0 && total == 0:
		c.store.Dispatch(transcript.SeedWelcome(welcome))
	case !c.cursor.Status().HasMore:
		c.store.Dispatch(transcript.PrependHistoryBlock(entries), transcript.EnsureWelcomeHead(welcome))
	default:
		c.store.Dispatch(transcript.PrependHistoryBlock(entries))
	}
	c.metrics.HistoryPage("ok")

	if len(msgs) > 0 {
		c.bus.Publish(bus.Event{
			Kind:      bus.KindHistoryPage,
			Timestamp: time.Now(),
			Payload:   bus.HistoryPage{ConvCode: req.Conversation, Messages: msgs},
		})
	}
	c.logger.Debug("history page loaded",
		zap.Int("page", req.PageIndex),
		zap.Int("messages", len(msgs)),
		zap.Int("total", total))
	return nil
}

// convert turns chronological server messages into entries and resolves
// their link previews with bounded concurrency. Output order follows input.
func (c *Controller) convert(ctx context.Context, msgs []platform.Message) []transcript.Entry {
	var entries []transcript.Entry
	for _, m := range msgs {
		entries = append(entries, toEntries(m)...)
	}
	if c.previewer == nil {
		return entries
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.EnrichLimit)
	for i := range entries {
		if entries[i].URL == "" {
			continue
		}
		g.Go(func() error {
			entries[i].Preview = c.previewer.Fetch(gctx, entries[i].URL)
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

// toEntries maps one server message to its display entries. Bot answers are
// split into segments; user messages stay whole.
func toEntries(m platform.Message) []transcript.Entry {
	if !m.IsBot() {
		return []transcript.Entry{newEntry(transcript.RoleUser, m, segment.Whole(m.Content))}
	}
	segs := segment.Segments(m.Content)
	entries := make([]transcript.Entry, 0, len(segs))
	for _, s := range segs {
		entries = append(entries, newEntry(transcript.RoleBot, m, s))
	}
	return entries
}

func newEntry(role transcript.Role, m platform.Message, s segment.Segment) transcript.Entry {
	return transcript.Entry{
		Role:         role,
		Kind:         transcript.KindMessage,
		Content:      s.Text,
		HTML:         segment.Linkify(s.Text, segment.HTMLAnchor),
		SequenceCode: m.MsgCode,
		Segment:      s.Index,
		URL:          s.URL,
		Rating:       m.Rating,
	}
}
