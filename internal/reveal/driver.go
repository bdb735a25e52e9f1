// Package reveal plays bot answers into the transcript one segment at a time.
package reveal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/metrics"
	"github.com/matheus3301/twin/internal/transcript"
)

var (
	// ErrStopped is returned when enqueueing on a driver that is not running.
	ErrStopped = errors.New("reveal: driver not running")
	// ErrQueueFull is returned when too many answers are waiting.
	ErrQueueFull = errors.New("reveal: queue full")
)

// Task is one answer to reveal, already split into ordered entries.
type Task struct {
	Code    string
	Entries []transcript.Entry
}

// Enricher resolves link previews for an entry before it is shown.
type Enricher func(ctx context.Context, e transcript.Entry) transcript.Entry

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Driver.
type Options struct {
	Delay     time.Duration
	QueueSize int
	Enrich    Enricher
	Sleep     SleepFunc
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Driver reveals queued answers strictly one after another.
type Driver struct {
	store  *transcript.Store
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	queue  chan Task
	cancel context.CancelFunc
	done   chan struct{}
	busy   bool
}

// New creates a stopped driver writing into store.
func New(store *transcript.Store, opts Options) *Driver {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Enrich == nil {
		opts.Enrich = func(_ context.Context, e transcript.Entry) transcript.Entry { return e }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{store: store, opts: opts, logger: logger}
}

// Start launches the driver goroutine. Calling Start on a running driver is a no-op.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.queue = make(chan Task, d.opts.QueueSize)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.loop(ctx, d.queue, d.done)
}

// Stop cancels the current reveal, discards queued tasks and waits for the
// goroutine to exit.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done, d.queue = nil, nil, nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Enqueue schedules t after every task already queued.
func (d *Driver) Enqueue(t Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue == nil {
		return ErrStopped
	}
	select {
	case d.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Busy reports whether a reveal is running or queued.
func (d *Driver) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy || (d.queue != nil && len(d.queue) > 0)
}

func (d *Driver) loop(ctx context.Context, queue <-chan Task, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-queue:
			d.setBusy(true)
			err := d.reveal(ctx, t)
			d.setBusy(false)
			if err != nil {
				d.logger.Debug("reveal interrupted", zap.String("code", t.Code), zap.Error(err))
				return
			}
		}
	}
}

func (d *Driver) reveal(ctx context.Context, t Task) error {
	d.store.Dispatch(transcript.RemoveTransient(transcript.RoleBot))
	for _, e := range t.Entries {
		d.store.Dispatch(transcript.AppendTransient(transcript.RoleBot, ""))
		if err := d.opts.Sleep(ctx, d.opts.Delay); err != nil {
			return err
		}
		e = d.opts.Enrich(ctx, e)
		if err := ctx.Err(); err != nil {
			return err
		}
		d.store.Dispatch(transcript.AppendFinal(e))
		d.opts.Metrics.SegmentRevealed()
		if err := d.opts.Sleep(ctx, d.opts.Delay); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) setBusy(b bool) {
	d.mu.Lock()
	d.busy = b
	d.mu.Unlock()
}

func sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
