package httpx

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

func NewRouter(checks map[string]ReadinessCheck) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog, middleware.Recoverer)
	r.Use(metrics.HTTPMetricsMiddleware)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyz(checks))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func readyz(checks map[string]ReadinessCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logx.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
				body[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		writeJSON(w, status, body)
	}
}

// AccessLog writes one structured line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := logx.Info()
		if status >= http.StatusInternalServerError {
			ev = logx.Warn()
		}
		ev.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
