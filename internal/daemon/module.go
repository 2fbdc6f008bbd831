package daemon

import (
	"context"
	"fmt"
	"os"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/lock"
	"github.com/matheus3301/wppdesk/internal/logging"
	"github.com/matheus3301/wppdesk/internal/media"
	"github.com/matheus3301/wppdesk/internal/notify"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/router"
	"github.com/matheus3301/wppdesk/internal/session"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/store"
	"github.com/matheus3301/wppdesk/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideSessionRecord,
			provideAdapter,
			provideMedia,
			provideNotifier,
			provideSender,
			provideRouter,
			provideHealth,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Desk, error) {
	cfg, err := config.LoadDesk(session.DeskConfigPath(p.SessionName))
	if err != nil {
		return nil, fmt.Errorf("load desk config: %w", err)
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Desk) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// The lock parameter orders store creation after the lock is held.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DeskDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

// provideSessionRecord registers the session and reconciles its queues
// with desk.toml.
func provideSessionRecord(p Params, cfg *config.Desk, db *store.DB, logger *zap.Logger) (*store.Session, error) {
	ctx := context.Background()
	rec, err := db.RegisterSession(ctx, p.SessionName, cfg.GreetingMessage)
	if err != nil {
		return nil, err
	}

	specs := make([]store.QueueSpec, 0, len(cfg.Queues))
	for _, q := range cfg.Queues {
		specs = append(specs, store.QueueSpec{Name: q.Name, GreetingMessage: q.GreetingMessage})
	}
	if err := db.SyncQueues(ctx, rec.ID, specs); err != nil {
		return nil, err
	}
	logger.Info("session registered", zap.Int64("session_id", rec.ID), zap.Int("queues", len(specs)))
	return rec, nil
}

func provideAdapter(p Params, rec *store.Session, logger *zap.Logger) (*wa.Adapter, error) {
	adapter, err := wa.NewAdapter(context.Background(), session.DeviceDBPath(p.SessionName), logger)
	if err != nil {
		return nil, err
	}
	adapter.SetSessionID(rec.ID)
	return adapter, nil
}

func provideMedia(p Params, cfg *config.Desk, logger *zap.Logger) *media.Store {
	dir := cfg.MediaDir
	if dir == "" {
		dir = session.MediaDir(p.SessionName)
	}
	m := media.New(dir)
	logger.Info("media directory", zap.String("path", m.Dir()))
	return m
}

// provideNotifier fans notifications out to the bus and, when configured,
// to an AMQP exchange.
func provideNotifier(lc fx.Lifecycle, cfg *config.Desk, b *bus.Bus, logger *zap.Logger) (notify.Emitter, error) {
	sinks := []notify.Emitter{notify.NewBus(b)}
	if cfg.AMQP.URL != "" {
		amqpSink, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(func() {
			if err := amqpSink.Close(); err != nil {
				logger.Warn("error closing amqp sink", zap.Error(err))
			}
		}))
		sinks = append(sinks, amqpSink)
		logger.Info("amqp notifications enabled", zap.String("exchange", cfg.AMQP.Exchange))
	}
	return notify.NewFanout(logger, sinks...), nil
}

func provideSender(cfg *config.Desk, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(cfg.Outbox.RatePerSecond, cfg.Outbox.Burst, logger)
}

func provideRouter(db *store.DB, m *media.Store, n notify.Emitter, s *outbox.Sender, cfg *config.Desk, logger *zap.Logger) *router.Router {
	return router.New(db, m, n, s, router.Config{
		MenuDebounce: cfg.Router.MenuDebounce.Duration,
		AckDelay:     cfg.Router.AckDelay.Duration,
	}, logger)
}

func provideHealth(m *status.Machine, b *bus.Bus, logger *zap.Logger) *api.HealthReporter {
	return api.NewHealthReporter(m, b, logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Adapter   *wa.Adapter
	Router    *router.Router
	Health    *api.HealthReporter
	Machine   *status.Machine
	Logger    *zap.Logger
}

func registerLifecycle(p lifecycleParams) {
	var (
		cancel  context.CancelFunc
		handler *wa.EventHandler
	)
	logger := p.Logger

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())

			// Register event handler for whatsmeow events.
			handler = wa.NewEventHandler(runCtx, p.Router, p.Adapter, p.Machine, p.Adapter.ResolveLID, logger)
			p.Adapter.RegisterEventHandler(handler.Handle)

			p.Health.Start(runCtx)

			// Start gRPC server in background.
			go func() {
				if err := p.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Transition state based on auth status.
			if p.Adapter.IsLoggedIn() {
				_ = p.Machine.Transition(status.Connecting)
				go func() {
					if err := p.Adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = p.Machine.TransitionWithReason(status.Error, err.Error())
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = p.Machine.Transition(status.AuthRequired)
				go pair(runCtx, p.Adapter, p.Machine, os.Stderr, logger)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			p.Router.Stop()
			p.Adapter.Disconnect()
			waitHandler(ctx, handler, logger)
			p.Health.Stop()
			p.Server.Stop(ctx)
			if err := p.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := p.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// waitHandler waits for in-flight router calls or until ctx ends.
func waitHandler(ctx context.Context, h *wa.EventHandler, logger *zap.Logger) {
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("stopped before in-flight events finished")
	}
}
