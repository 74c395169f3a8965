package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"weatherapi-server/internal/config"
	"weatherapi-server/internal/metrics"
)

// Middleware wraps a handler. The auth gate is passed in this form so the
// chain does not depend on how identities are resolved.
type Middleware func(http.Handler) http.Handler

// NewHandler builds the middleware chain around mux. From the outside in:
// CORS (when origins are configured), request logging, panic recovery,
// metrics, then the gate.
func NewHandler(cfg config.Config, mux http.Handler, gate Middleware, logger *slog.Logger) http.Handler {
	h := mux
	if gate != nil {
		h = gate(h)
	}
	h = metrics.InstrumentHandler(h)
	h = recoverer(logger, h)
	h = requestLogger(logger, h)

	if len(cfg.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodPatch,
				http.MethodDelete,
			},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         600,
		}).Handler(h)
	}
	return h
}

func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
