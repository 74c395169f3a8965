package httpapi

import (
	"net/http"

	"weatherapi-server/internal/metrics"
)

// PublicPaths are served without a bearer token.
var PublicPaths = []string{"/auth/login", "/healthz", "/metrics"}

func NewMux(store Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, store)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
