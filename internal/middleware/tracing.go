package middleware

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware wraps handlers with OpenTelemetry tracing. Spans are
// named after the gateway operation implied by method and path.
func TracingMiddleware() func(http.Handler) http.Handler {
	tracer := otel.Tracer("crypto-range-gateway")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			objectKey := extractObjectKey(r.URL.Path)
			ctx, span := tracer.Start(ctx, spanName(r.Method, objectKey),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethod(r.Method),
					semconv.HTTPTarget(r.URL.Path),
					attribute.String("http.host", r.Host),
					attribute.String("http.remote_addr", remoteAddr(r)),
				),
			)

			if objectKey != "" {
				span.SetAttributes(attribute.String("object.key", objectKey))
			}
			if rng := r.Header.Get("Range"); rng != "" {
				span.SetAttributes(attribute.String("http.request.header.range", rng))
			}

			rw := &tracingResponseWriter{ResponseWriter: w}
			r = r.WithContext(ctx)

			defer func() {
				span.SetAttributes(semconv.HTTPStatusCode(rw.statusCode))
				if rw.statusCode >= 400 {
					span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
				} else {
					span.SetStatus(codes.Ok, "")
				}
				span.End()
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// extractObjectKey pulls the object key out of /objects/{key} paths.
func extractObjectKey(path string) string {
	const prefix = "/objects/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimPrefix(path, prefix)
}

func spanName(method, objectKey string) string {
	if objectKey == "" {
		return "HTTP " + method
	}
	switch method {
	case http.MethodGet:
		return "Gateway GetObject"
	case http.MethodPut:
		return "Gateway PutObject"
	case http.MethodDelete:
		return "Gateway DeleteObject"
	case http.MethodHead:
		return "Gateway HeadObject"
	default:
		return "HTTP " + method
	}
}

// remoteAddr extracts the real remote address, handling X-Forwarded-For and X-Real-IP.
func remoteAddr(r *http.Request) string {
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	return r.RemoteAddr
}

// tracingResponseWriter wraps http.ResponseWriter to capture status code for tracing.
type tracingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *tracingResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *tracingResponseWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}
