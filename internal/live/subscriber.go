package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/metrics"
	"github.com/matheus3301/twin/internal/status"
)

// Transport opens one stream and blocks until it ends. onOpen fires once the
// server accepted the subscription; emit receives each raw payload.
type Transport interface {
	Stream(ctx context.Context, p Params, onOpen func(), emit func([]byte)) error
}

// Handler receives the pub.data of every accepted payload.
type Handler func(data json.RawMessage)

// Options configures a Subscriber.
type Options struct {
	Machine    *status.Machine
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Subscriber maintains at most one subscription, re-established whenever the
// parameters change or the stream drops.
type Subscriber struct {
	transport Transport
	handler   Handler
	opts      Options
	logger    *zap.Logger

	mu     sync.Mutex
	params Params
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates an idle subscriber.
func NewSubscriber(t Transport, h Handler, opts Options) *Subscriber {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{transport: t, handler: h, opts: opts, logger: logger}
}

// Update switches the subscription to p. Identical parameters keep the
// current stream; anything else tears it down first. Incomplete parameters
// leave the subscriber stopped.
func (s *Subscriber) Update(p Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p == s.params && s.cancel != nil {
		return
	}
	s.stopLocked()
	s.params = p
	if !p.Complete() {
		s.transition(status.Offline)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		s.run(ctx, p)
	}()
}

// Params returns the current subscription parameters.
func (s *Subscriber) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Close stops the subscription and waits for it to exit.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.params = Params{}
}

func (s *Subscriber) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Subscriber) run(ctx context.Context, p Params) {
	backoff := s.opts.MinBackoff
	for {
		s.transition(status.Connecting)
		err := s.transport.Stream(ctx, p, func() {
			backoff = s.opts.MinBackoff
			s.transition(status.Live)
			s.logger.Info("live channel subscribed", zap.String("channel", p.Channel))
		}, s.deliver)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("live channel dropped", zap.String("channel", p.Channel), zap.Error(err), zap.Duration("retry_in", backoff))
		s.transition(status.Reconnecting)
		s.opts.Metrics.LiveReconnect()

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, s.opts.MaxBackoff)
	}
}

func (s *Subscriber) deliver(raw []byte) {
	data, ok := Unwrap(raw)
	if !ok {
		s.opts.Metrics.LiveEvent("dropped")
		s.logger.Debug("live payload dropped", zap.ByteString("payload", raw))
		return
	}
	s.opts.Metrics.LiveEvent("forwarded")
	s.handler(data)
}

func (s *Subscriber) transition(to status.State) {
	if s.opts.Machine == nil {
		return
	}
	if err := s.opts.Machine.Transition(to); err != nil {
		s.logger.Debug("status transition skipped", zap.Error(err))
	}
}
