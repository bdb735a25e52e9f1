package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/metrics"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/store"
)

// pollInterval is how often queued rows are picked up without a kick.
const pollInterval = 500 * time.Millisecond

// ChatSubmitter posts a user message to the platform.
type ChatSubmitter interface {
	SubmitChat(ctx context.Context, botCode, convCode string, req platform.ChatRequest) error
}

// Sender drains the outbox and submits messages to the platform.
type Sender struct {
	db        *store.DB
	submitter ChatSubmitter
	bus       *bus.Bus
	metrics   *metrics.Metrics
	logger    *zap.Logger

	kick   chan struct{}
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, submitter ChatSubmitter, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:        db,
		submitter: submitter,
		bus:       b,
		metrics:   m,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Enqueue stores text for delivery and wakes the loop. It returns the
// client message id used in the outbox.* events, generating one when id is
// empty.
func (s *Sender) Enqueue(id, botCode, convCode, text string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.db.QueueOutbox(id, botCode, convCode, text); err != nil {
		return "", fmt.Errorf("queue outbox: %w", err)
	}
	s.Kick()
	return id, nil
}

// Kick requests an immediate pass over the outbox.
func (s *Sender) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Start begins polling the outbox for pending messages. Rows left in
// 'sending' by a previous run are failed first.
func (s *Sender) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if n, err := s.db.FailStaleSending(); err != nil {
		s.logger.Warn("failed to reset interrupted outbox rows", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("interrupted outbox rows marked failed", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Sender) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.kick:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		claimed, err := s.db.MarkOutboxSending(entry.ClientMsgID)
		if err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		if !claimed {
			continue
		}
		s.send(ctx, entry)
	}
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) {
	result := bus.OutboxResult{ClientMsgID: entry.ClientMsgID, ConvCode: entry.ConvCode, Body: entry.Body}

	err := s.submitter.SubmitChat(ctx, entry.BotCode, entry.ConvCode, platform.ChatRequest{Content: entry.Body})
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		if markErr := s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark failed", zap.Error(markErr), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.metrics.OutboxResult(store.OutboxFailed)
		result.Err = err
		s.bus.Publish(bus.Event{Kind: bus.KindOutboxFailed, Timestamp: time.Now(), Payload: result})
		return
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	s.metrics.OutboxResult(store.OutboxSent)
	s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("conv_code", entry.ConvCode))
	s.bus.Publish(bus.Event{Kind: bus.KindOutboxSent, Timestamp: time.Now(), Payload: result})
}
