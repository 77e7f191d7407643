package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/crypto-range-gateway/internal/audit"
	"github.com/kenneth/crypto-range-gateway/internal/config"
	"github.com/kenneth/crypto-range-gateway/internal/crypto"
	"github.com/kenneth/crypto-range-gateway/internal/meta"
	"github.com/kenneth/crypto-range-gateway/internal/metrics"
	"github.com/kenneth/crypto-range-gateway/internal/storage"
)

const maxKeyLength = 1024

// Handler serves the object API: uploads are encrypted on the way to the
// storage backend, downloads are decrypted positionally so ranged reads
// only touch the ciphertext they need.
type Handler struct {
	backend storage.Backend
	meta    *meta.Store
	cfg     *config.Config
	secret  string
	logger  *logrus.Logger
	metrics *metrics.Metrics
	audit   audit.Logger
}

// NewHandler creates the API handler. secret is the resolved key-derivation
// password (from config or key file). metrics and auditLogger may be nil.
func NewHandler(
	backend storage.Backend,
	metaStore *meta.Store,
	cfg *config.Config,
	secret string,
	logger *logrus.Logger,
	m *metrics.Metrics,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		backend: backend,
		meta:    metaStore,
		cfg:     cfg,
		secret:  secret,
		logger:  logger,
		metrics: m,
		audit:   auditLogger,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.handleHealth).Methods("GET")
	r.HandleFunc("/readyz", h.handleReady).Methods("GET")

	r.HandleFunc("/objects", h.handleListObjects).Methods("GET")
	r.HandleFunc("/objects/{key:.+}", h.handleGetObject).Methods("GET")
	r.HandleFunc("/objects/{key:.+}", h.handlePutObject).Methods("PUT")
	r.HandleFunc("/objects/{key:.+}", h.handleDeleteObject).Methods("DELETE")
	r.HandleFunc("/objects/{key:.+}", h.handleHeadObject).Methods("HEAD")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	// The metadata store is the only dependency that can fail
	// independently of a request.
	if _, err := h.meta.List(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "metadata store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) handlePutObject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := mux.Vars(r)["key"]
	if len(key) == 0 || len(key) > maxKeyLength {
		ErrInvalidKeyName.WriteJSON(w)
		return
	}

	transformation := h.cfg.Encryption.Transformation

	salt, err := crypto.GenerateSalt()
	if err != nil {
		h.failStore(w, key, transformation, start, err)
		return
	}
	objectKey, err := crypto.DeriveKey(h.secret, salt)
	if err != nil {
		h.failStore(w, key, transformation, start, err)
		return
	}
	defer crypto.ZeroBytes(objectKey)

	baseIV, err := crypto.GenerateIV(transformation)
	if err != nil {
		h.failStore(w, key, transformation, start, err)
		return
	}

	stream, err := crypto.NewStream(transformation, objectKey, baseIV, h.cfg.Encryption.BufferSize)
	if err != nil {
		h.failStore(w, key, transformation, start, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxObjectSize)
	encrypted, err := stream.EncryptingReader(body)
	if err != nil {
		h.failStore(w, key, transformation, start, err)
		return
	}

	putStart := time.Now()
	size, err := h.backend.Put(r.Context(), key, encrypted)
	h.recordStorage("put", putStart, err)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrEntityTooLarge.WriteJSON(w)
			return
		}
		h.failStore(w, key, transformation, start, err)
		return
	}

	obj := &meta.Object{
		Key:            key,
		Transformation: transformation,
		BaseIV:         baseIV,
		Salt:           salt,
		Size:           size,
		ContentType:    r.Header.Get("Content-Type"),
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.meta.Put(obj); err != nil {
		// The blob is stored but unreadable without its record; remove it.
		h.backend.Delete(r.Context(), key)
		h.failStore(w, key, transformation, start, err)
		return
	}

	if h.audit != nil {
		h.audit.LogStore(key, transformation, size, true, nil, time.Since(start))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":            key,
		"size":           size,
		"transformation": transformation,
	})
}

// recordStorage reports one backend call to the storage metric families.
// Missing objects count as operations, not errors.
func (h *Handler) recordStorage(operation string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordStorageOperation(operation, h.backend.Name(), time.Since(start))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.metrics.RecordStorageError(operation, h.backend.Name(), "io")
	}
}

func (h *Handler) failStore(w http.ResponseWriter, key, transformation string, start time.Time, err error) {
	h.logger.WithError(err).WithField("key", key).Error("Failed to store object")
	if h.audit != nil {
		h.audit.LogStore(key, transformation, 0, false, err, time.Since(start))
	}
	TranslateError(err, key).WriteJSON(w)
}

func (h *Handler) handleGetObject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := mux.Vars(r)["key"]

	obj, err := h.meta.Get(key)
	if err != nil {
		h.failRead(w, key, "", 0, 0, start, err)
		return
	}

	objectKey, err := crypto.DeriveKey(h.secret, obj.Salt)
	if err != nil {
		h.failRead(w, key, obj.Transformation, 0, 0, start, err)
		return
	}
	defer crypto.ZeroBytes(objectKey)

	stream, err := crypto.NewStream(obj.Transformation, objectKey, obj.BaseIV, h.cfg.Encryption.BufferSize)
	if err != nil {
		h.failRead(w, key, obj.Transformation, 0, 0, start, err)
		return
	}

	openStart := time.Now()
	src, size, err := h.backend.Open(r.Context(), key)
	h.recordStorage("open", openStart, err)
	if err != nil {
		h.failRead(w, key, obj.Transformation, 0, 0, start, err)
		return
	}
	reader := crypto.NewPositionedReader(stream, src, size)
	defer reader.Close()

	rng, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		ErrInvalidRangeHeader.WriteJSON(w)
		return
	}

	offset, length := int64(0), size
	status := http.StatusOK
	kind := "full"
	if rng != nil {
		offset, length = rng.Start, rng.Length()
		status = http.StatusPartialContent
		kind = "range"
		w.Header().Set("Content-Range", rng.ContentRange(size))
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.WriteHeader(status)

	n, err := io.Copy(w, io.NewSectionReader(reader, offset, length))
	duration := time.Since(start)

	if h.metrics != nil {
		h.metrics.RecordRangeRequest(kind)
		h.metrics.RecordDecrypt(obj.Transformation, duration, n)
		if err != nil {
			h.metrics.RecordDecryptError(obj.Transformation, "copy")
		}
		bufHits, bufMisses, cipherHits, cipherMisses := reader.PoolStats()
		h.metrics.RecordPoolCheckouts("buffer", bufHits, bufMisses)
		h.metrics.RecordPoolCheckouts("cipher", cipherHits, cipherMisses)
	}
	if h.audit != nil {
		h.audit.LogRead(key, obj.Transformation, offset, length, err == nil, err, duration)
	}
	if err != nil {
		// Headers are gone; all we can do is log and drop the connection.
		h.logger.WithError(err).WithField("key", key).Error("Failed streaming object body")
	}
}

func (h *Handler) failRead(w http.ResponseWriter, key, transformation string, offset, length int64, start time.Time, err error) {
	apiErr := TranslateError(err, key)
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("key", key).Error("Failed to read object")
	}
	if h.audit != nil {
		h.audit.LogRead(key, transformation, offset, length, false, err, time.Since(start))
	}
	apiErr.WriteJSON(w)
}

func (h *Handler) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := mux.Vars(r)["key"]

	obj, err := h.meta.Get(key)
	if err != nil {
		if h.audit != nil {
			h.audit.LogAccess("head", key, false, err, time.Since(start))
		}
		w.WriteHeader(TranslateError(err, key).HTTPStatus)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.Header().Set("Last-Modified", obj.CreatedAt.UTC().Format(http.TimeFormat))
	if h.audit != nil {
		h.audit.LogAccess("head", key, true, nil, time.Since(start))
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := mux.Vars(r)["key"]

	deleteStart := time.Now()
	err := h.backend.Delete(r.Context(), key)
	h.recordStorage("delete", deleteStart, err)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		// The record decides whether the object existed.
		err = h.meta.Delete(key)
	}
	if err != nil {
		if h.audit != nil {
			h.audit.LogDelete(key, false, err, time.Since(start))
		}
		TranslateError(err, key).WriteJSON(w)
		return
	}

	if h.audit != nil {
		h.audit.LogDelete(key, true, nil, time.Since(start))
	}
	w.WriteHeader(http.StatusNoContent)
}

type objectSummary struct {
	Key            string    `json:"key"`
	Size           int64     `json:"size"`
	Transformation string    `json:"transformation"`
	ContentType    string    `json:"content_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) handleListObjects(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	objects, err := h.meta.List()
	if h.audit != nil {
		h.audit.LogAccess("list", "", err == nil, err, time.Since(start))
	}
	if err != nil {
		TranslateError(err, "").WriteJSON(w)
		return
	}

	summaries := make([]objectSummary, 0, len(objects))
	for _, obj := range objects {
		summaries = append(summaries, objectSummary{
			Key:            obj.Key,
			Size:           obj.Size,
			Transformation: obj.Transformation,
			ContentType:    obj.ContentType,
			CreatedAt:      obj.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": summaries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
