package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ClpWatch/internal/handler/ws"
	"ClpWatch/internal/usecase"
	"ClpWatch/pkg/config"
	xhttp "ClpWatch/pkg/http"
	"ClpWatch/pkg/http/middleware"
	pkgkafka "ClpWatch/pkg/kafka"
	applogger "ClpWatch/pkg/logger"
)

type closer struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	monitor    *usecase.WatchlistMonitor
	hub        *ws.Hub
	handler    xhttp.Handler
	limiter    middleware.Allower
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	closers    []closer
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	monitor *usecase.WatchlistMonitor,
	hub *ws.Hub,
	handler xhttp.Handler,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, monitor: monitor, hub: hub, handler: handler}
}

// SetRateLimiter enables per-client request limiting on the API.
func (a *App) SetRateLimiter(l middleware.Allower) { a.limiter = l }

// SetConsumer attaches a Kafka consumer and the handler it feeds.
func (a *App) SetConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler) {
	a.consumer, a.kh = c, kh
}

// AddCloser registers a resource released on shutdown, in reverse order. Nil is ignored.
func (a *App) AddCloser(name string, c io.Closer) {
	if c == nil {
		return
	}
	a.closers = append(a.closers, closer{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	l := a.log

	if a.hub != nil {
		go a.hub.Run(ctx)
		if a.monitor != nil {
			a.monitor.Subscribe(a.hub.Publish)
		}
	}

	if a.monitor != nil {
		go a.monitor.Start(ctx, a.cfg.Monitor.Refresh)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			l.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if a.cfg.Server.SlowThreshold > 0 {
		opts = append(opts, xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold))
	}
	if a.limiter != nil {
		opts = append(opts, xhttp.WithRateLimiter(a.limiter))
	}
	handlers := []xhttp.Handler{a.handler}
	if a.hub != nil {
		handlers = append(handlers, a.hub)
	}
	a.httpServer = xhttp.NewServer(handlers, opts...)
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	l := a.log
	l.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	l.RemoveCollector()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].c.Close(); err != nil {
			l.Warn("close error", applogger.String("resource", a.closers[i].name), applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
