package controller

import (
	"context"
	"net/http"
	"time"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/weather/types"
)

// StationService is the part of the station data service the handlers use.
type StationService interface {
	CreateStation(ctx context.Context, inputs []types.ReadingInput) ([]types.Reading, error)
	AppendReadings(ctx context.Context, deviceName string, inputs []types.ReadingInput) ([]types.Reading, error)
	MaxPrecipitation(ctx context.Context, deviceName string) (types.MaxPrecipitation, error)
	ReadingAt(ctx context.Context, deviceName string, at time.Time) (types.ReadingSnapshot, error)
	MaxTemperature(ctx context.Context, r db.TimeRange) (types.MaxTemperature, error)
	DeleteReadings(ctx context.Context, deviceName string, r db.TimeRange) (int64, error)
	PatchPrecipitation(ctx context.Context, id string, patch types.PrecipitationPatch) (types.Reading, error)
}

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	service StationService
}

func NewWeatherController(service StationService) WeatherController {
	return &weatherControllerImpl{service: service}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /weather-stations", auth.Require(auth.OpCreateStation, c.handleCreateStation))
	mux.HandleFunc("POST /weather-stations/{deviceName}", auth.Require(auth.OpAppendReadings, c.handleAppendReadings))
	mux.HandleFunc("GET /weather-stations/{deviceName}/max-precipitation", auth.Require(auth.OpMaxPrecipitation, c.handleMaxPrecipitation))
	mux.HandleFunc("GET /weather-stations/{deviceName}/readings/{date}", auth.Require(auth.OpReadingAt, c.handleReadingAt))
	mux.HandleFunc("GET /weather-stations/max-temperature", auth.Require(auth.OpMaxTemperature, c.handleMaxTemperature))
	mux.HandleFunc("DELETE /weather-stations/{deviceName}/readings", auth.Require(auth.OpDeleteReadings, c.handleDeleteReadings))
	mux.HandleFunc("PATCH /weather-stations/{entryID}/precipitation", auth.Require(auth.OpPatchPrecipitation, c.handlePatchPrecipitation))
}
