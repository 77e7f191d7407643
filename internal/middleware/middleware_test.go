package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	handler := LoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("0123456789"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/objects/photo.jpg", nil)
	req.Header.Set("Range", "bytes=0-9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, http.StatusPartialContent, entry.Data["status"])
	assert.Equal(t, int64(10), entry.Data["bytes"])
	assert.Equal(t, "bytes=0-9", entry.Data["range"])
}

func TestLoggingMiddlewareUploadBytes(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()

	handler := LoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
	}))

	body := make([]byte, 128)
	req := httptest.NewRequest(http.MethodPut, "/objects/blob", bytes.NewReader(body))
	req.Header.Set("Content-Length", "128")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, int64(128), hook.LastEntry().Data["bytes"])
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestTracingMiddlewarePassesThrough(t *testing.T) {
	handler := TracingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/objects/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractObjectKey(t *testing.T) {
	assert.Equal(t, "a/b/c", extractObjectKey("/objects/a/b/c"))
	assert.Equal(t, "", extractObjectKey("/healthz"))
	assert.Equal(t, "", extractObjectKey("/objects/"))
}

func TestSpanName(t *testing.T) {
	assert.Equal(t, "Gateway GetObject", spanName(http.MethodGet, "k"))
	assert.Equal(t, "Gateway PutObject", spanName(http.MethodPut, "k"))
	assert.Equal(t, "Gateway DeleteObject", spanName(http.MethodDelete, "k"))
	assert.Equal(t, "HTTP GET", spanName(http.MethodGet, ""))
}
