package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"weatherapi-server/internal/config"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/weather/types"
)

// ReadingRepository persists sensor readings. Lookups that match nothing
// return an error wrapping db.ErrNotFound; malformed ids wrap db.ErrInvalidID.
type ReadingRepository interface {
	// InsertMany stores the readings in order and returns them with ids set.
	InsertMany(ctx context.Context, readings []types.Reading) ([]types.Reading, error)
	DeviceExists(ctx context.Context, deviceName string) (bool, error)
	// MaxPrecipitationSince reports the highest precipitation at or after
	// since, with the time of the last matching reading in insertion order.
	MaxPrecipitationSince(ctx context.Context, deviceName string, since time.Time) (types.MaxPrecipitation, error)
	FindAt(ctx context.Context, deviceName string, at time.Time) (types.ReadingSnapshot, error)
	// MaxTemperatureBetween breaks ties in favour of the earliest inserted reading.
	MaxTemperatureBetween(ctx context.Context, r db.TimeRange) (types.MaxTemperature, error)
	FindIDs(ctx context.Context, deviceName string, r db.TimeRange) ([]string, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	// UpdatePrecipitation overwrites precipitation only and returns the
	// updated reading.
	UpdatePrecipitation(ctx context.Context, id string, precipitation float64) (types.Reading, error)
}

func NewRepository(store *db.Store) (ReadingRepository, error) {
	switch store.Driver {
	case config.DriverSQLite:
		return NewSQLiteRepository(store.SQL), nil
	case config.DriverMongoDB:
		return NewMongoRepository(store.Mongo), nil
	default:
		return nil, fmt.Errorf("readings: unsupported driver %q", store.Driver)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
