package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/metrics"
)

// Router собирает всё HTTP-приложение: health, метрики и JSON API.
func (a *API) Router(db *sql.DB, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, accessLog(a.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		metrics.ObserveDBPing(time.Since(t0))
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(a.auth.Middleware)
		r.Route("/me", a.meRoutes)
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Route("/admin", a.adminRoutes)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "not_found", "route not found")
	})
	return r
}

type HTTPServer struct {
	srv  *http.Server
	done chan struct{}
}

// Done закрывается после завершения Shutdown.
func (s *HTTPServer) Done() <-chan struct{} { return s.done }

func StartHTTP(ctx context.Context, addr string, h http.Handler, log *zap.Logger) *HTTPServer {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
		}
	}()

	hs := &HTTPServer{srv: srv, done: make(chan struct{})}
	go func() {
		defer close(hs.done)
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return hs
}
