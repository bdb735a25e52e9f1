// Package chat drives one conversation with a digital-twin bot: history,
// sending, live answers, ratings and the subscription gate.
package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/history"
	"github.com/matheus3301/twin/internal/live"
	"github.com/matheus3301/twin/internal/metrics"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/preview"
	"github.com/matheus3301/twin/internal/reveal"
	"github.com/matheus3301/twin/internal/status"
	"github.com/matheus3301/twin/internal/transcript"
)

// Platform is the part of the platform API the controller calls.
type Platform interface {
	GetBot(ctx context.Context, botCode string) (*platform.Bot, error)
	InitConversation(ctx context.Context, botCode string) (*platform.ConversationInit, error)
	ConversationDetail(ctx context.Context, botCode, convCode string, q platform.HistoryQuery) (*platform.HistoryPage, error)
	SubmitRating(ctx context.Context, botCode, convCode, msgCode string, value int) error
	SubmitFeedback(ctx context.Context, botCode, convCode, msgCode string, fb platform.Feedback) error
	CheckSubscription(ctx context.Context, botCode, convCode string) (*platform.Subscription, error)
}

// Outbox queues user messages for delivery and reports on the bus under the
// given client message id.
type Outbox interface {
	Enqueue(clientMsgID, botCode, convCode, text string) (string, error)
}

// Previewer resolves link previews. It never fails.
type Previewer interface {
	Fetch(ctx context.Context, rawURL string) *preview.Preview
}

// LiveUpdater owns the live subscription.
type LiveUpdater interface {
	Update(p live.Params)
	Close()
}

// Config holds the per-conversation settings.
type Config struct {
	BotCode      string
	LiveEndpoint string
	PageSize     int
	MaxFreeChat  int
	RevealDelay  time.Duration
	WelcomeText  string
	SubscribeURL string
	// EnrichLimit bounds concurrent preview lookups while converting a page.
	EnrichLimit int
}

// Deps are the collaborators of a Controller. Previewer, Machine, Metrics
// and Logger may be nil.
type Deps struct {
	Platform  Platform
	Outbox    Outbox
	Previewer Previewer
	Bus       *bus.Bus
	Machine   *status.Machine
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// Sleep replaces the reveal pause, for tests.
	Sleep reveal.SleepFunc
}

// Controller coordinates one conversation.
type Controller struct {
	cfg       Config
	platform  Platform
	outbox    Outbox
	previewer Previewer
	bus       *bus.Bus
	machine   *status.Machine
	metrics   *metrics.Metrics
	logger    *zap.Logger

	store  *transcript.Store
	cursor *history.Manager
	driver *reveal.Driver

	// sendMu serializes Send from the busy check to the enqueue.
	sendMu sync.Mutex

	mu           sync.Mutex
	live         LiveUpdater
	bot          *platform.Bot
	conv         string
	liveToken    string
	welcome      string
	subscription *platform.Subscription
	pending      map[string]struct{}

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped controller.
func New(cfg Config, deps Deps) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.EnrichLimit <= 0 {
		cfg.EnrichLimit = 4
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Bus == nil {
		deps.Bus = bus.New()
	}
	c := &Controller{
		cfg:       cfg,
		platform:  deps.Platform,
		outbox:    deps.Outbox,
		previewer: deps.Previewer,
		bus:       deps.Bus,
		machine:   deps.Machine,
		metrics:   deps.Metrics,
		logger:    logger,
		cursor:    history.NewManager(),
		welcome:   cfg.WelcomeText,
		pending:   make(map[string]struct{}),
		runCtx:    context.Background(),
	}
	c.store = transcript.NewStore(c.publishSnapshot)
	c.driver = reveal.New(c.store, reveal.Options{
		Delay:   cfg.RevealDelay,
		Enrich:  c.enrich,
		Sleep:   deps.Sleep,
		Metrics: deps.Metrics,
		Logger:  logger.Named("reveal"),
	})
	return c
}

// AttachLive sets the live subscription the controller keeps pointed at the
// open conversation.
func (c *Controller) AttachLive(u LiveUpdater) {
	c.mu.Lock()
	c.live = u
	c.mu.Unlock()
}

// Start launches the reveal driver and the outbox result listener.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.runCtx, c.cancel = ctx, cancel
	c.mu.Unlock()

	c.driver.Start(ctx)

	ch, unsub := c.bus.Subscribe("outbox.", 64)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c.handleOutbox(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels all background work and waits for it.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, lu := c.cancel, c.live
	c.cancel = nil
	c.mu.Unlock()
	if lu != nil {
		lu.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.driver.Stop()
	c.wg.Wait()
}

// Conversation returns the open conversation code.
func (c *Controller) Conversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

// Snapshot returns the current transcript.
func (c *Controller) Snapshot() transcript.Snapshot {
	return c.store.Snapshot()
}

// Turns returns the transcript grouped into turns.
func (c *Controller) Turns() []transcript.Turn {
	return transcript.Group(c.store.Snapshot().Entries)
}

// State is a read-only view of the conversation.
type State struct {
	BotCode      string
	BotName      string
	BotAvatar    string
	ConvCode     string
	Transcript   transcript.Snapshot
	Turns        []transcript.Turn
	History      history.Status
	Gate         Gate
	SubscribeURL string
	Subscription *platform.Subscription
	Revealing    bool
}

// State returns the conversation view at now.
func (c *Controller) State(now time.Time) State {
	snap := c.store.Snapshot()
	st := State{
		BotCode:      c.cfg.BotCode,
		Transcript:   snap,
		Turns:        transcript.Group(snap.Entries),
		History:      c.cursor.Status(),
		Gate:         c.Gate(now),
		SubscribeURL: c.cfg.SubscribeURL,
		Revealing:    c.driver.Busy(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st.ConvCode = c.conv
	if c.bot != nil {
		st.BotName = c.bot.Name
		st.BotAvatar = c.bot.Avatar
	}
	if c.subscription != nil {
		sub := *c.subscription
		st.Subscription = &sub
	}
	return st
}

func (c *Controller) publishSnapshot(s transcript.Snapshot) {
	c.bus.Publish(bus.Event{Kind: bus.KindTranscriptChanged, Timestamp: time.Now(), Payload: s})
}

func (c *Controller) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCtx
}

func (c *Controller) enrich(ctx context.Context, e transcript.Entry) transcript.Entry {
	if e.URL == "" || c.previewer == nil {
		return e
	}
	e.Preview = c.previewer.Fetch(ctx, e.URL)
	return e
}

func (c *Controller) transition(to status.State) {
	if c.machine == nil {
		return
	}
	if err := c.machine.Transition(to); err != nil {
		c.logger.Debug("status transition skipped", zap.Error(err))
	}
}

func (c *Controller) notifyError(err error) {
	c.bus.Publish(bus.Notify("error", platform.UserMessage(err)))
}
