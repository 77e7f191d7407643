package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/crypto-range-gateway/internal/metrics"
)

// LoggingMiddleware wraps handlers with structured request logging and HTTP
// metrics. The metrics instance may be nil.
func LoggingMiddleware(logger *logrus.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Uploads report the request body size, downloads the bytes
			// written back.
			var requestBytes int64
			if r.Method == http.MethodPut || r.Method == http.MethodPost {
				if cl := r.Header.Get("Content-Length"); cl != "" {
					if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
						requestBytes = size
					}
				}
			}

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if m != nil {
				m.IncrementActiveConnections()
				defer m.DecrementActiveConnections()
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			bytesLogged := rw.bytesWritten
			if requestBytes > 0 {
				bytesLogged = requestBytes
			}

			fields := logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"status":      rw.statusCode,
				"duration_ms": duration.Milliseconds(),
				"bytes":       bytesLogged,
			}
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}
			if rng := r.Header.Get("Range"); rng != "" {
				fields["range"] = rng
			}
			logger.WithFields(fields).Info("HTTP request")

			if m != nil {
				m.RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, duration, bytesLogged)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
