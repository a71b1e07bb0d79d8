package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matheus3301/wamcp/internal/api"
	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/command"
	"github.com/matheus3301/wamcp/internal/config"
	"github.com/matheus3301/wamcp/internal/lock"
	"github.com/matheus3301/wamcp/internal/logging"
	"github.com/matheus3301/wamcp/internal/outbox"
	"github.com/matheus3301/wamcp/internal/query"
	"github.com/matheus3301/wamcp/internal/session"
	"github.com/matheus3301/wamcp/internal/status"
	"github.com/matheus3301/wamcp/internal/store"
	intsync "github.com/matheus3301/wamcp/internal/sync"
	"github.com/matheus3301/wamcp/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	Version     string

	Transport  string // stdio or http
	Host       string
	Port       int
	LogLevel   string
	MediaDir   string // empty = <session>/media
	DeviceName string

	// Stdio streams; nil means os.Stdin / os.Stdout.
	Stdin  io.Reader
	Stdout io.Writer
}

func (p Params) socketPath() string {
	if p.SocketPath != "" {
		return p.SocketPath
	}
	return session.SocketPath(p.SessionName)
}

func (p Params) mediaDir() string {
	if p.MediaDir != "" {
		return p.MediaDir
	}
	return session.MediaDir(p.SessionName)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideSyncEngine,
			provideSender,
			provideQueries,
			provideCommands,
			provideMCP,
			provideHealth,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName, p.MediaDir); err != nil {
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

// provideStore depends on the lock so that nobody opens the databases of a
// session owned by another daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
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
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	chats, _ := db.ChatCount()
	msgs, _ := db.MessageCount()
	logger.Info("store initialized",
		zap.String("path", dbPath), zap.Int64("chats", chats), zap.Int64("messages", msgs))
	return db, nil
}

func provideAdapter(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), wa.Options{
		DeviceDBPath: session.DeviceDBPath(p.SessionName),
		MediaDir:     p.mediaDir(),
		DeviceName:   p.DeviceName,
	}, b, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, adapter *wa.Adapter, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, adapter, logger)
}

func provideSender(db *store.DB, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, adapter, b, logger)
}

func provideQueries(db *store.DB, logger *zap.Logger) *query.Service {
	return query.NewService(db, logger.Named("query"))
}

func provideCommands(sender *outbox.Sender, logger *zap.Logger) *command.Service {
	return command.NewService(sender, logger.Named("command"))
}

func provideMCP(p Params, q *query.Service, c *command.Service, logger *zap.Logger) *api.Server {
	return api.NewServer(q, c, p.Version, logger.Named("mcp"))
}

func provideHealth(p Params, m *status.Machine, logger *zap.Logger) (*api.HealthServer, error) {
	return api.NewHealthServer(p.socketPath(), m, logger)
}

type lifecycleIn struct {
	fx.In

	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Params     Params
	Lock       *lock.Lock
	DB         *store.DB
	Adapter    *wa.Adapter
	Engine     *intsync.Engine
	Sender     *outbox.Sender
	MCP        *api.Server
	Health     *api.HealthServer
	Machine    *status.Machine
	Bus        *bus.Bus
	Logger     *zap.Logger
}

func registerLifecycle(in lifecycleIn) error {
	transport := strings.ToLower(in.Params.Transport)
	if transport == "" {
		transport = config.TransportStdio
	}
	if transport != config.TransportStdio && transport != config.TransportHTTP {
		return fmt.Errorf("unknown transport %q", in.Params.Transport)
	}

	var (
		cancel  context.CancelFunc
		httpSrv *api.HTTPServer
		logger  = in.Logger
	)

	in.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			// Ingestion first so no event published after connect is missed.
			in.Engine.Start(ctx)
			if n, err := in.Sender.Recover(); err != nil {
				logger.Warn("outbox recovery failed", zap.Error(err))
			} else if n > 0 {
				logger.Warn("outbox entries interrupted by previous run", zap.Int("count", n))
			}

			watchEvents(ctx, in.Bus, logger)
			handler := wa.NewEventHandler(in.Bus, in.Machine, in.Adapter, logger)
			in.Adapter.RegisterEventHandler(handler.Handle)

			in.Health.Mirror(ctx, in.Bus)
			go func() {
				if err := in.Health.Start(); err != nil {
					logger.Error("health server error", zap.Error(err))
				}
			}()

			switch transport {
			case config.TransportHTTP:
				httpSrv = in.MCP.NewHTTPServer(in.Params.Host, in.Params.Port)
				l, err := httpSrv.Listen()
				if err != nil {
					cancel()
					return err
				}
				go func() {
					if err := httpSrv.Serve(l); err != nil {
						logger.Error("MCP HTTP server error", zap.Error(err))
						_ = in.Shutdowner.Shutdown(fx.ExitCode(1))
					}
				}()
			default:
				stdin, stdout := in.Params.Stdin, in.Params.Stdout
				if stdin == nil {
					stdin = os.Stdin
				}
				if stdout == nil {
					stdout = os.Stdout
				}
				go func() {
					if err := in.MCP.ServeStdio(ctx, stdin, stdout); err != nil {
						logger.Error("MCP stdio server error", zap.Error(err))
					}
					// The client closed the stream: nothing left to serve.
					_ = in.Shutdowner.Shutdown()
				}()
			}

			if in.Adapter.IsLoggedIn() {
				_ = in.Machine.Transition(status.Connecting)
				go func() {
					if err := in.Adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = in.Machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Warn("no credentials found, run `wamcpd pair` to link this session")
				_ = in.Machine.Transition(status.AuthRequired)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if httpSrv != nil {
				if err := httpSrv.Shutdown(ctx); err != nil {
					logger.Warn("MCP HTTP shutdown", zap.Error(err))
				}
			}
			in.Engine.Stop()
			in.Adapter.Disconnect()
			in.Health.Stop()
			if err := in.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := in.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
	return nil
}
