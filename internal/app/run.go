package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Trolleroof/Clue2-hackathon/internal/health"
	"github.com/Trolleroof/Clue2-hackathon/internal/observe"
)

// httpShutdownGrace bounds how long the observability server may take to
// drain in-flight requests when Run's context is cancelled.
const httpShutdownGrace = 5 * time.Second

// Run serves the observability endpoint (/healthz, /readyz, /metrics) and
// blocks until ctx is cancelled. When server.listen_addr is empty, Run just
// waits for cancellation. Returns ctx's error (context.Canceled on a clean
// signal-driven exit).
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		h := health.New(
			health.Checker{Name: "session", Check: func(context.Context) error {
				if !a.state.Active() {
					return errors.New("session idle")
				}
				return nil
			}},
			health.Checker{Name: "capture", Check: func(context.Context) error {
				if a.cfg.Capture.Binary == "" {
					// Manual-only install; capture cannot be expected to run.
					return nil
				}
				if !a.capture.Running() {
					return errors.New("capture subprocess not running")
				}
				return nil
			}},
		)
		h.Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              addr,
			Handler:           observe.Middleware(a.metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			slog.Info("app: observability endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
			defer cancel()
			return srv.Shutdown(shCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	return g.Wait()
}

// Shutdown ends the session via Close, then tears down the remaining
// subsystems in reverse-init order (synthesis queue before batcher). It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
// Safe to call once; subsequent calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))

		if err := a.Close(ctx); err != nil {
			slog.Warn("app: session close during shutdown", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}

		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}
