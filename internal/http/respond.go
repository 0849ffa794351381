package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/order-service/internal/service"
	"github.com/rs/zerolog/log"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// errorMapper converts service errors into HTTP responses. Messages of
// unexpected errors are only exposed in development.
type errorMapper struct {
	exposeInternal bool
}

func (m errorMapper) handle(w http.ResponseWriter, r *http.Request, err error) {
	var (
		httpStatus int
		code       string
	)

	switch {
	case errors.Is(err, service.ErrValidation):
		resp := ErrorResponse{Error: err.Error(), Code: "validation_error"}
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			resp.Error = verr.Message
			resp.Fields = verr.Fields
		}
		respondJSON(w, http.StatusBadRequest, resp)
		return
	case errors.Is(err, service.ErrNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrForbidden):
		httpStatus, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, service.ErrInvalidTransition):
		httpStatus, code = http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, service.ErrCatalogUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		log.Error().Ctx(r.Context()).Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")

		resp := ErrorResponse{Error: "internal server error", Code: "internal_error"}
		if m.exposeInternal {
			resp.Details = err.Error()
		}
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
