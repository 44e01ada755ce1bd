package middleware

import (
	"net/http"
	"time"

	"github.com/HammerMeetNail/feedsync/internal/logging"
)

type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Apply logs one line per request: ERROR for 5xx, WARN for 4xx, DEBUG
// otherwise.
func (rl *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   GetClientIP(r),
		}
		if r.URL.RawQuery != "" {
			fields["query"] = r.URL.RawQuery
		}

		switch {
		case rec.status >= 500:
			rl.logger.Error("Request failed", fields)
		case rec.status >= 400:
			rl.logger.Warn("Request rejected", fields)
		default:
			rl.logger.Debug("Request completed", fields)
		}
	})
}
