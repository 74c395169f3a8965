package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"weatherapi-server/internal/apperr"
)

const maxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// WriteMessage writes a 200 response carrying only a message.
func WriteMessage(w http.ResponseWriter, format string, args ...any) {
	WriteJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf(format, args...)})
}

// WriteAppError maps err onto the apperr taxonomy. Internal causes are logged
// and never sent to the client.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err)
	}
	status := apperr.HTTPStatus(appErr.Kind)
	if appErr.Kind == apperr.KindInternal {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"code":    appErr.Kind,
		"message": appErr.Message,
	})
}

// DecodeJSON reads exactly one JSON value from the request body into v.
// Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidInput("request body is required")
		}
		return apperr.InvalidInput("invalid JSON body: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return apperr.InvalidInput("invalid JSON body: unexpected data after the JSON value")
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseDate accepts RFC 3339 timestamps, offset-less date-times and plain
// dates. Values without an offset are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseDateParam parses a required date parameter, naming it in the error.
func ParseDateParam(name, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, apperr.InvalidInput("%s is required", name)
	}
	t, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("%s must be a date (YYYY-MM-DD or RFC 3339)", name)
	}
	return t, nil
}
