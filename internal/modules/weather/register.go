package weather

import (
	"log/slog"
	"net/http"

	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/weather/controller"
	"weatherapi-server/internal/modules/weather/repository"
	"weatherapi-server/internal/modules/weather/service"
)

// RegisterFeature mounts the station routes. The returned service also backs
// broker ingest.
func RegisterFeature(mux *http.ServeMux, store *db.Store, logger *slog.Logger) (*service.Service, error) {
	weatherRepository, err := repository.NewRepository(store)
	if err != nil {
		return nil, err
	}
	weatherService := service.NewService(weatherRepository, logger.With("module", "weather"))
	controller.NewWeatherController(weatherService).RegisterRoutes(mux)
	return weatherService, nil
}
