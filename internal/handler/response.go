package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/service"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error"`
}

// consumerMessages are the only error texts consumer routes ever return.
var consumerMessages = map[string]string{
	"not_found":        "listing not found",
	"throttled":        "too many refresh requests for this listing, retry later",
	"unavailable":      "this data is not available from the configured provider",
	"queue_error":      "similar listings are temporarily unavailable",
	"extraction_error": "listing data could not be extracted",
	"upstream_error":   "the marketplace could not be reached",
	"cache_error":      "storage is temporarily unavailable",
	"internal_error":   "internal error",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

// errorKind extends apperr.Kind with the service sentinels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, service.ErrListingNotFound), errors.Is(err, service.ErrJobNotFound):
		return "not_found"
	case errors.Is(err, service.ErrEnqueueThrottled):
		return "throttled"
	case errors.Is(err, service.ErrProviderUnavailable), errors.Is(err, service.ErrConditionScorerUnavailable):
		return "unavailable"
	case errors.Is(err, service.ErrQueueUnavailable):
		return "queue_error"
	}
	return apperr.Kind(err)
}

func statusCode(kind string) int {
	switch kind {
	case "validation_error":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "throttled":
		return http.StatusTooManyRequests
	case "extraction_error", "upstream_error":
		return http.StatusBadGateway
	case "unavailable", "queue_error", "cache_error":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeInternalError answers a /v1 route. Callers there are trusted, so the
// error text is returned as is.
func writeInternalError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	slog.Error("request failed", "kind", kind, "error", err)
	writeJSON(w, statusCode(kind), errorResponse{Success: false, Kind: kind, Error: err.Error()})
}

// writeConsumerError answers an /api route with a taxonomy-level message.
func writeConsumerError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	msg := consumerMessages[kind]

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Msg
	}
	if msg == "" {
		msg = consumerMessages["internal_error"]
	}

	if kind == "validation_error" || kind == "not_found" {
		slog.Info("request rejected", "kind", kind, "error", err)
	} else {
		slog.Error("request failed", "kind", kind, "error", err)
	}
	writeJSON(w, statusCode(kind), errorResponse{Success: false, Status: "error", Kind: kind, Error: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Success: false, Error: "method not allowed"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Success: false, Kind: "validation_error", Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}
