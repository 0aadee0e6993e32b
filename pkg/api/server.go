// Package api contains the HTTP surface of the termgate daemon: the
// catalog routes under /api, the health and metrics endpoints, and the
// WebSocket mount.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/termgate/termgate/pkg/api/v1"
	"github.com/termgate/termgate/pkg/logger"
	"github.com/termgate/termgate/pkg/remote"
	"github.com/termgate/termgate/pkg/session"
	"github.com/termgate/termgate/pkg/telemetry"
)

// Not sure if these values need to be configurable.
const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Deps carries the subsystems the HTTP surface exposes. The caller
// constructs and owns them; Serve only routes to them.
type Deps struct {
	Terminals *session.Manager
	Remotes   *remote.Registry
	Images    v1.ImageStore
	Contexts  v1.ContextLister
	Metrics   *telemetry.Metrics
	Gateway   http.Handler
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// Router assembles the full route tree. The request timeout applies to the
// catalog routes only: WebSocket connections live for hours and must not
// inherit a deadline.
func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		headersMiddleware,
	)

	r.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(middlewareTimeout))

		routers := map[string]http.Handler{
			"/health":               v1.HealthRouter(deps.Terminals),
			"/api/terminals":        v1.TerminalsRouter(deps.Terminals),
			"/api/kubectl-contexts": v1.ContextsRouter(deps.Contexts),
			"/api/container-images": v1.ImagesRouter(deps.Images),
			"/api/ssh-sessions":     v1.SSHSessionsRouter(deps.Remotes),
			"/metrics":              deps.Metrics.Handler(),
		}
		for prefix, router := range routers {
			g.Mount(prefix, router)
		}
	})

	r.Mount("/ws", deps.Gateway)

	return r
}

// Serve starts the server on the given address and serves the API until the
// context is cancelled. It is assumed that the caller sets up appropriate
// signal handling.
func Serve(ctx context.Context, address string, deps Deps) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           Router(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	logger.Infof("starting HTTP server on %s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Shut down with a fresh context: the serve context is already done.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Infof("HTTP server stopped")
	return nil
}
