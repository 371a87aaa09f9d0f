// Package bot wires the encoder bot: configuration, infrastructure, the
// Telegram routes and the handlers for audio reordering and thumbnails.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/m3rciful/encoderbot/core/bootstrap"
	"github.com/m3rciful/encoderbot/core/cmd"
	"github.com/m3rciful/encoderbot/core/logger"
	tg "github.com/m3rciful/encoderbot/core/telegram"
	"github.com/m3rciful/encoderbot/core/telegram/callbacks"
	"github.com/m3rciful/encoderbot/core/telegram/router"
	"github.com/m3rciful/encoderbot/core/telegram/state"
	"github.com/m3rciful/encoderbot/internal/metrics"
	"github.com/m3rciful/encoderbot/internal/thumbnail"
	"github.com/m3rciful/encoderbot/migrations"

	tele "gopkg.in/telebot.v4"
)

const component = "app"

// App holds the wired bot. It implements cmd.TelegramApp and io.Closer.
type App struct {
	cfg       *Config
	infra     *bootstrap.Result
	registry  *tg.Registry
	fsm       state.Manager
	metrics   *metrics.Metrics
	thumbs    thumbnail.Store
	listeners registryListeners
	// client resolves the Bot API of an update; tests replace it.
	client func(tele.Context) botClient

	mu         sync.Mutex
	runCtx     context.Context
	metricsSrv *http.Server
}

// Bootstrap initializes logging and storage for the loaded configuration and
// returns the wired app.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}

	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	var store thumbnail.Store
	if infra.DB != nil {
		store = thumbnail.NewPostgresStore(infra.DB, m)
	} else {
		logger.Warn(ctx, component, "thumbnails.memory",
			slog.String("reason", "no database configured; thumbnails are lost on restart"),
		)
		store = thumbnail.NewMemoryStore()
	}

	app := New(cfg, store, m)
	app.infra = infra
	return app, nil
}

// New wires an app around store. m may be nil.
func New(cfg *Config, store thumbnail.Store, m *metrics.Metrics) *App {
	reg := tg.NewRegistry()
	a := &App{
		cfg:       cfg,
		registry:  reg,
		fsm:       state.NewMemoryManager(state.MemoryOptions{TTL: 10 * time.Minute}),
		metrics:   m,
		thumbs:    store,
		listeners: registryListeners{reg: reg},
		client:    func(c tele.Context) botClient { return c.Bot() },
		runCtx:    context.Background(),
	}
	a.register()
	return a
}

func (a *App) register() {
	a.registry.RegisterCommand("/start", tg.Command{
		Handler:     a.handleStart,
		Description: "How to use the bot",
	})
	a.registry.RegisterCommand("/audiosel", tg.Command{
		Handler:     a.handleAudioSel,
		Description: "Reorder audio streams (reply to an ffprobe JSON file)",
	})
	a.registry.RegisterCommand("/thumb", tg.Command{
		Handler:     a.handleThumb,
		Description: "Show or change your custom thumbnail",
		Aliases:     []string{"thumbnail"},
	})
	a.registry.RegisterCommand("/setthumb", tg.Command{
		Handler:     a.handleSetThumbCommand,
		Description: "Set your custom thumbnail",
		Hidden:      true,
	})
	a.registry.RegisterCommand("/sessions", tg.Command{
		Handler:     a.handleSessions,
		Description: "Count open reorder sessions",
		AdminOnly:   true,
	})

	for key, h := range map[string]tele.HandlerFunc{
		setThumbKey: a.handleSetThumb,
		delThumbKey: a.handleDelThumb,
	} {
		if err := a.registry.RegisterCallback(key, h); err != nil {
			logger.Error(context.Background(), component, "register.callback", slog.String("err", err.Error()))
		}
	}

	a.fsm.Handle(stateThumbAwaitPhoto, a.handleAwaitPhoto)
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(a.registry))
	routes = append(routes, router.MessageRoutes(a.fsm, a.registry, router.MessageOptions{
		Photo: a.handlePhoto,
	})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, a.metrics, onLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Answer(c, &tele.CallbackResponse{Text: "Too many requests, slow down"})
	}
	return nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runCtx = ctx

	listen := a.cfg.Metrics.Listen
	if listen == "" {
		return nil
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("bot: metrics listen %s: %w", listen, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), component, "metrics.serve", slog.String("err", err.Error()))
		}
	}(a.metricsSrv)
	logger.Info(ctx, component, "metrics.listen", slog.String("addr", ln.Addr().String()))
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	a.mu.Lock()
	srv := a.metricsSrv
	a.metricsSrv = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// baseContext is cancelled when the bot stops.
func (a *App) baseContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runCtx
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.infra.Close()
}
