package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/campus-faq/internal/domain/faq"
	"github.com/yanqian/campus-faq/internal/infra/config"
	"github.com/yanqian/campus-faq/internal/infra/seed"
)

// Closer releases a background resource on shutdown.
type Closer interface {
	Close()
}

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	svc     faq.Service
	seeds   seed.Source
	closers []Closer
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, svc faq.Service, seeds seed.Source, resources *Resources) *App {
	return &App{
		cfg:     cfg,
		logger:  logger.With("component", "bootstrap"),
		server:  server,
		svc:     svc,
		seeds:   seeds,
		closers: resources.closers,
	}
}

// Resources collects the long-lived clients closed after the server stops.
type Resources struct {
	closers []Closer
}

// NewResources groups closers for the app.
func NewResources(closers ...Closer) *Resources {
	out := make([]Closer, 0, len(closers))
	for _, c := range closers {
		if c != nil {
			out = append(out, c)
		}
	}
	return &Resources{closers: out}
}

// Run warms the index, starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := a.warmup(ctx); err != nil {
		a.logger.Warn("warmup failed, serving with an empty index", "error", err)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) warmup(ctx context.Context) error {
	seeds, err := a.seeds.Load(ctx)
	if err != nil {
		a.logger.Warn("seed source unavailable", "error", err)
		seeds = nil
	}
	return a.svc.Warmup(ctx, seeds)
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}
