package app

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/ctxutil"
	"github.com/Spok95/group-grader/internal/metrics"
	"github.com/Spok95/group-grader/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// requestID берёт X-Request-ID клиента или выдаёт новый uuid.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), id)))
	})
}

// accessLog пишет запрос в zap, считает метрику и ловит панику хендлера.
func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if p := recover(); p != nil {
					err := fmt.Errorf("panic: %v", p)
					observability.CaptureErr(err)
					log.Error("handler panic", zap.String("path", r.URL.Path), zap.Error(err))
					if ww.Status() == 0 {
						writeProblem(ww, http.StatusInternalServerError, "internal", "internal error")
					}
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
				fields := []zap.Field{
					zap.String("request_id", ctxutil.RequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
				}
				if status >= 500 {
					log.Warn("http", fields...)
				} else {
					log.Debug("http", fields...)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
