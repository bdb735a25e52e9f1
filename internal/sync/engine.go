package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/store"
	"go.uber.org/zap"
)

// Ingested is the payload of bus.KindSyncIngested.
type Ingested struct {
	ConvCode string
	Count    int
}

// Engine mirrors persisted conversation messages into the local cache.
// It subscribes to live, history and rating events on the bus.
type Engine struct {
	db         *store.DB
	bus        *bus.Bus
	reconciler *Reconciler
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:         db,
		bus:        b,
		reconciler: NewReconciler(db, logger),
		logger:     logger,
	}
}

// Reconciler exposes the engine's checkpoints.
func (e *Engine) Reconciler() *Reconciler {
	return e.reconciler
}

// Start subscribes to conversation events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("live.|history.|message.", 256)

	go func(done chan<- struct{}) {
		defer close(done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}(e.done)
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindLiveMessage:
		p, ok := evt.Payload.(bus.LiveMessage)
		if !ok {
			return
		}
		if err := e.IngestMessage(p.ConvCode, p.Message); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_code", p.Message.MsgCode))
		}
	case bus.KindHistoryPage:
		p, ok := evt.Payload.(bus.HistoryPage)
		if !ok {
			return
		}
		if err := e.IngestHistoryBatch(p.ConvCode, p.Messages); err != nil {
			e.logger.Error("failed to ingest history batch", zap.Error(err), zap.Int("count", len(p.Messages)))
		} else {
			e.logger.Debug("history batch ingested", zap.Int("messages", len(p.Messages)))
		}
	case bus.KindMessageRated:
		p, ok := evt.Payload.(bus.MessageRated)
		if !ok {
			return
		}
		if err := e.db.SetRating(p.ConvCode, p.Codes, p.Value); err != nil {
			e.logger.Error("failed to store rating", zap.Error(err), zap.Strings("msg_codes", p.Codes))
		}
	}
}

// IngestMessage stores a single message (idempotent).
func (e *Engine) IngestMessage(convCode string, msg platform.Message) error {
	if msg.MsgCode == "" {
		return nil
	}
	if err := e.db.UpsertMessage(toStore(convCode, msg)); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	e.ingested(convCode, 1)
	return nil
}

// IngestHistoryBatch stores a page of history messages in a transaction.
func (e *Engine) IngestHistoryBatch(convCode string, msgs []platform.Message) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count := 0
	now := time.Now().UnixMilli()
	for _, pm := range msgs {
		if pm.MsgCode == "" {
			continue
		}
		sm := toStore(convCode, pm)
		if _, err := tx.Exec(`
			INSERT INTO messages (conv_code, msg_code, sender_type, content, rating, sent_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conv_code, msg_code) DO UPDATE SET
				sender_type = excluded.sender_type,
				content = excluded.content,
				rating = CASE WHEN excluded.rating != 0 THEN excluded.rating ELSE messages.rating END`,
			sm.ConvCode, sm.MsgCode, sm.SenderType, sm.Content, sm.Rating, sm.SentAt, now); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	e.ingested(convCode, count)
	return nil
}

func (e *Engine) ingested(convCode string, count int) {
	if err := e.reconciler.MarkIngested(convCode, time.Now()); err != nil {
		e.logger.Warn("failed to update checkpoint", zap.Error(err), zap.String("conv_code", convCode))
	}
	e.bus.Publish(bus.Event{
		Kind:      bus.KindSyncIngested,
		Timestamp: time.Now(),
		Payload:   Ingested{ConvCode: convCode, Count: count},
	})
}

func toStore(convCode string, m platform.Message) *store.Message {
	var sentAt int64
	if t := m.Time(); !t.IsZero() {
		sentAt = t.UnixMilli()
	}
	return &store.Message{
		ConvCode:   convCode,
		MsgCode:    m.MsgCode,
		SenderType: string(m.SenderType),
		Content:    m.Content,
		Rating:     m.Rating,
		SentAt:     sentAt,
	}
}
