package daemon

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/matheus3301/twin/internal/api"
	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/chat"
	"github.com/matheus3301/twin/internal/config"
	"github.com/matheus3301/twin/internal/live"
	"github.com/matheus3301/twin/internal/lock"
	"github.com/matheus3301/twin/internal/logging"
	"github.com/matheus3301/twin/internal/metrics"
	"github.com/matheus3301/twin/internal/ogmeta"
	"github.com/matheus3301/twin/internal/outbox"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/preview"
	"github.com/matheus3301/twin/internal/session"
	"github.com/matheus3301/twin/internal/status"
	"github.com/matheus3301/twin/internal/store"
	intsync "github.com/matheus3301/twin/internal/sync"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // optional; nil = load ~/.twin/config.toml
	Debug       bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideBinding,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideMetrics,
			provideLock,
			provideStore,
			providePlatform,
			provideScraper,
			providePreviewer,
			provideSyncEngine,
			provideSender,
			provideController,
			provideSubscriber,
			provideService,
			NewServer,
			NewHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config.WithDefaults(), nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideBinding(p Params, cfg *config.Config) (config.Session, error) {
	return cfg.Session(p.SessionName)
}

func provideLogger(p Params) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if p.Debug {
		level = zapcore.DebugLevel
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), "twind")
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the cache is never opened by two daemons.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CachePath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	schema, err := db.UpgradeSchema()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("cache opened",
		zap.String("path", dbPath),
		zap.Uint("schema", schema.Version),
		zap.Bool("upgraded", schema.Upgraded()))
	return db, nil
}

func providePlatform(cfg *config.Config, binding config.Session, logger *zap.Logger) *platform.Client {
	return platform.NewClient(cfg.Platform.APIBaseURL, binding.Token, cfg.Platform.RequestTimeout.Duration, logger.Named("platform"))
}

func provideScraper(cfg *config.Config, logger *zap.Logger) *ogmeta.Scraper {
	client := &http.Client{Timeout: cfg.Preview.Timeout.Duration}
	return ogmeta.NewScraper(client, logger.Named("ogmeta"))
}

// providePreviewer asks the configured metadata service when there is one and
// scrapes pages in-process otherwise.
func providePreviewer(cfg *config.Config, scraper *ogmeta.Scraper, db *store.DB, m *metrics.Metrics, logger *zap.Logger) *preview.Previewer {
	var f preview.Fetcher = scraper
	if cfg.Platform.MetadataURL != "" {
		f = preview.NewEndpointFetcher(cfg.Platform.MetadataURL, &http.Client{Timeout: cfg.Preview.Timeout.Duration})
	}
	return preview.New(f, preview.Options{
		Timeout:   cfg.Preview.Timeout.Duration,
		CacheSize: cfg.Preview.CacheSize,
		CacheTTL:  cfg.Preview.CacheTTL.Duration,
		Persister: db,
		Metrics:   m,
		Logger:    logger.Named("preview"),
	})
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger.Named("sync"))
}

func provideSender(db *store.DB, client *platform.Client, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, b, m, logger.Named("outbox"))
}

func provideController(cfg *config.Config, binding config.Session, client *platform.Client, sender *outbox.Sender, previewer *preview.Previewer, b *bus.Bus, m *status.Machine, mt *metrics.Metrics, logger *zap.Logger) *chat.Controller {
	return chat.New(chat.Config{
		BotCode:      binding.BotCode,
		LiveEndpoint: cfg.Platform.SSEBaseURL,
		PageSize:     cfg.Chat.PageSize,
		MaxFreeChat:  cfg.Chat.MaxFreeChat,
		RevealDelay:  cfg.Chat.RevealDelay.Duration,
		WelcomeText:  cfg.Chat.WelcomeText,
		SubscribeURL: cfg.Chat.SubscribeURL,
	}, chat.Deps{
		Platform:  client,
		Outbox:    sender,
		Previewer: previewer,
		Bus:       b,
		Machine:   m,
		Metrics:   mt,
		Logger:    logger.Named("chat"),
	})
}

func provideSubscriber(cfg *config.Config, ctrl *chat.Controller, m *status.Machine, mt *metrics.Metrics, logger *zap.Logger) *live.Subscriber {
	var t live.Transport = &live.SSETransport{Client: &http.Client{}}
	if cfg.Platform.LiveTransport == "websocket" {
		t = &live.WebSocketTransport{}
	}
	sub := live.NewSubscriber(t, ctrl.HandleLive, live.Options{
		Machine: m,
		Metrics: mt,
		Logger:  logger.Named("live"),
	})
	ctrl.AttachLive(sub)
	return sub
}

func provideService(p Params, ctrl *chat.Controller, m *status.Machine, db *store.DB, engine *intsync.Engine, b *bus.Bus, logger *zap.Logger) *api.Service {
	return api.NewService(p.SessionName, ctrl, m, db, engine.Reconciler(), b, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, httpSrv *HTTPServer, lk *lock.Lock, db *store.DB, engine *intsync.Engine, sender *outbox.Sender, ctrl *chat.Controller, _ *live.Subscriber, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Cache writers first so no bus event is missed.
			engine.Start(runCtx)
			sender.Start(runCtx)
			ctrl.Start(runCtx)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if err := httpSrv.Start(); err != nil {
				return err
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := ctrl.Bootstrap(runCtx); err != nil {
					logger.Error("bootstrap failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			wg.Wait()
			ctrl.Stop()
			sender.Stop()
			engine.Stop()
			httpSrv.Stop(ctx)
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
