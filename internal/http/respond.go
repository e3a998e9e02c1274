package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// validationErrors are reported to clients as 400.
var validationErrors = []error{
	errBadRequest,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrInvalidCurrency,
	core.ErrInvalidStatus,
	core.ErrInvalidRule,
	core.ErrInvalidEntry,
	core.ErrInvalidPeriodCount,
	core.ErrInvalidDate,
	core.ErrInvalidLedgerKey,
	core.ErrBaseCurrencyImmutable,
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// statusFor maps the engine's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrLedgerNotFound),
		errors.Is(err, core.ErrEntryNotFound),
		errors.Is(err, core.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrLedgerExists):
		return http.StatusConflict
	case core.IsRetryable(err):
		return http.StatusServiceUnavailable
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Retryable: core.IsRetryable(err)}

	logger := applog.FromContext(ctx)
	switch {
	case status >= 500:
		logger.ErrorContext(ctx, "Request failed", "error", err, "status", status)
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		} else {
			w.Header().Set("Retry-After", "5")
		}
	default:
		logger.DebugContext(ctx, "Request rejected", "error", err, "status", status)
	}
	writeJSON(ctx, w, status, resp)
}

// decodeJSON reads a single JSON document into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// ledgerKey validates a "YYYY-MM" path parameter.
func ledgerKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if _, _, err := core.ParseLedgerKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// retry runs fn with the configured retry budget for retryable engine errors.
func (s *Server) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	return services.Retry(ctx, op, s.retryAttempts, fn)
}

func (s *Server) today() core.Date {
	return core.NewDateFromTime(s.now())
}
