package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kenneth/crypto-range-gateway/internal/crypto"
	"github.com/kenneth/crypto-range-gateway/internal/meta"
	"github.com/kenneth/crypto-range-gateway/internal/storage"
)

// Error is the JSON error envelope returned by the gateway.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Resource   string `json:"resource,omitempty"`
	HTTPStatus int    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WriteJSON writes the error response.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus)
	json.NewEncoder(w).Encode(e)
}

// TranslateError maps internal errors onto API error envelopes.
func TranslateError(err error, key string) *Error {
	if err == nil {
		return nil
	}

	resource := "/objects/" + key

	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, meta.ErrNotFound):
		return &Error{
			Code:       "NoSuchKey",
			Message:    fmt.Sprintf("The specified key does not exist: %s", key),
			Resource:   resource,
			HTTPStatus: http.StatusNotFound,
		}
	case errors.Is(err, crypto.ErrInvalidRange):
		return &Error{
			Code:       "InvalidRange",
			Message:    "The requested range is not satisfiable.",
			Resource:   resource,
			HTTPStatus: http.StatusRequestedRangeNotSatisfiable,
		}
	case errors.Is(err, crypto.ErrReaderClosed):
		return &Error{
			Code:       "ServiceUnavailable",
			Message:    "The decryption engine is shutting down.",
			Resource:   resource,
			HTTPStatus: http.StatusServiceUnavailable,
		}
	}

	var cipherErr *crypto.CipherError
	if errors.As(err, &cipherErr) {
		return &Error{
			Code:       "DecryptionFailure",
			Message:    "The object could not be decrypted.",
			Resource:   resource,
			HTTPStatus: http.StatusInternalServerError,
		}
	}

	return &Error{
		Code:       "InternalError",
		Message:    "We encountered an internal error. Please try again.",
		Resource:   resource,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Predefined API errors
var (
	ErrInvalidKeyName = &Error{
		Code:       "InvalidKeyName",
		Message:    "The specified object key is not valid.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidRangeHeader = &Error{
		Code:       "InvalidRange",
		Message:    "The Range header is malformed or not satisfiable.",
		HTTPStatus: http.StatusRequestedRangeNotSatisfiable,
	}

	ErrEntityTooLarge = &Error{
		Code:       "EntityTooLarge",
		Message:    "The uploaded object exceeds the maximum allowed size.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)
