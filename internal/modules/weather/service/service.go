package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/metrics"
	"weatherapi-server/internal/modules/weather/repository"
	"weatherapi-server/internal/modules/weather/types"
)

// precipitationWindowMonths is the trailing window for the max
// precipitation lookup, in calendar months.
const precipitationWindowMonths = 5

type Service struct {
	repository repository.ReadingRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo repository.ReadingRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repository: repo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateStation stores the first readings of one or more stations.
func (s *Service) CreateStation(ctx context.Context, inputs []types.ReadingInput) ([]types.Reading, error) {
	readings, err := types.ValidateAll(inputs, "")
	if err != nil {
		return nil, err
	}
	stored, err := s.repository.InsertMany(ctx, readings)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	metrics.RecordReadingsIngested("http", len(stored))
	s.logger.Info("station readings stored", "device", stored[0].DeviceName, "count", len(stored))
	return stored, nil
}

// AppendReadings adds readings to a station that already has at least one.
// Readings without a deviceName belong to deviceName; any other name is
// rejected.
func (s *Service) AppendReadings(ctx context.Context, deviceName string, inputs []types.ReadingInput) ([]types.Reading, error) {
	stored, err := s.appendReadings(ctx, deviceName, inputs)
	if err != nil {
		return nil, err
	}
	metrics.RecordReadingsIngested("http", len(stored))
	return stored, nil
}

// Ingest applies the append rules to readings received from a broker.
func (s *Service) Ingest(ctx context.Context, deviceName string, payload []byte) ([]types.Reading, error) {
	inputs, err := types.DecodeReadings(payload)
	if err != nil {
		return nil, err
	}
	stored, err := s.appendReadings(ctx, deviceName, inputs)
	if err != nil {
		return nil, err
	}
	metrics.RecordReadingsIngested("mqtt", len(stored))
	return stored, nil
}

func (s *Service) appendReadings(ctx context.Context, deviceName string, inputs []types.ReadingInput) ([]types.Reading, error) {
	if deviceName == "" {
		return nil, apperr.InvalidInput("deviceName is required")
	}
	exists, err := s.repository.DeviceExists(ctx, deviceName)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("Weather station '%s' not found", deviceName)
	}

	readings, err := types.ValidateAll(inputs, deviceName)
	if err != nil {
		return nil, err
	}
	for _, r := range readings {
		if r.DeviceName != deviceName {
			return nil, apperr.InvalidInput("deviceName '%s' does not match station '%s'", r.DeviceName, deviceName)
		}
	}

	stored, err := s.repository.InsertMany(ctx, readings)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.logger.Info("readings appended", "device", deviceName, "count", len(stored))
	return stored, nil
}

func (s *Service) MaxPrecipitation(ctx context.Context, deviceName string) (types.MaxPrecipitation, error) {
	since := s.now().AddDate(0, -precipitationWindowMonths, 0)
	result, err := s.repository.MaxPrecipitationSince(ctx, deviceName, since)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return types.MaxPrecipitation{}, apperr.NotFound("No data found for '%s' in the last %d months", deviceName, precipitationWindowMonths)
		}
		return types.MaxPrecipitation{}, apperr.Internal(err)
	}
	return result, nil
}

func (s *Service) ReadingAt(ctx context.Context, deviceName string, at time.Time) (types.ReadingSnapshot, error) {
	snapshot, err := s.repository.FindAt(ctx, deviceName, at)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return types.ReadingSnapshot{}, apperr.NotFound("No data found for '%s' at %s", deviceName, at.Format(time.RFC3339Nano))
		}
		return types.ReadingSnapshot{}, apperr.Internal(err)
	}
	return snapshot, nil
}

func (s *Service) MaxTemperature(ctx context.Context, r db.TimeRange) (types.MaxTemperature, error) {
	result, err := s.repository.MaxTemperatureBetween(ctx, r)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return types.MaxTemperature{}, apperr.NotFound("No data found in the provided date range")
		}
		return types.MaxTemperature{}, apperr.Internal(err)
	}
	return result, nil
}

func (s *Service) DeleteReadings(ctx context.Context, deviceName string, r db.TimeRange) (int64, error) {
	ids, err := s.repository.FindIDs(ctx, deviceName, r)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if len(ids) == 0 {
		return 0, apperr.NotFound("No data found in the provided date range")
	}
	n, err := s.repository.DeleteMany(ctx, ids)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	s.logger.Info("readings deleted", "device", deviceName, "count", n)
	return n, nil
}

func (s *Service) PatchPrecipitation(ctx context.Context, id string, patch types.PrecipitationPatch) (types.Reading, error) {
	if patch.Precipitation == nil {
		return types.Reading{}, apperr.InvalidInput("precipitation is required")
	}
	reading, err := s.repository.UpdatePrecipitation(ctx, id, *patch.Precipitation)
	switch {
	case err == nil:
		return reading, nil
	case errors.Is(err, db.ErrInvalidID):
		return types.Reading{}, apperr.InvalidInput("The entry ID provided is not valid")
	case errors.Is(err, db.ErrNotFound):
		return types.Reading{}, apperr.NotFound("Weather station entry with ID: '%s' was not found", id)
	default:
		return types.Reading{}, apperr.Internal(err)
	}
}
