package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/weather/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/device-exists.sql
var deviceExistsSQL string

//go:embed sql/get-max-precipitation-since.sql
var getMaxPrecipitationSinceSQL string

//go:embed sql/get-reading-at.sql
var getReadingAtSQL string

//go:embed sql/get-max-temperature-between.sql
var getMaxTemperatureBetweenSQL string

//go:embed sql/get-reading-ids.sql
var getReadingIDsSQL string

//go:embed sql/delete-readings-by-ids.sql
var deleteReadingsByIDsSQL string

//go:embed sql/update-precipitation.sql
var updatePrecipitationSQL string

//go:embed sql/get-reading-by-id.sql
var getReadingByIDSQL string

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(conn *sql.DB) ReadingRepository {
	return &sqliteRepository{db: conn}
}

func (r *sqliteRepository) InsertMany(ctx context.Context, readings []types.Reading) ([]types.Reading, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert readings: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare insert reading: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Error("close insert reading stmt", "error", err)
		}
	}()

	out := make([]types.Reading, 0, len(readings))
	for _, rd := range readings {
		rd.ID = db.NewID()
		_, err := stmt.ExecContext(ctx,
			rd.ID,
			rd.DeviceName,
			rd.Precipitation,
			rd.AtmosphericPressure,
			rd.Latitude,
			rd.Longitude,
			rd.Temperature,
			db.FormatTime(rd.Time),
			rd.Humidity,
			rd.MaxWindSpeed,
			rd.SolarRadiation,
			rd.VaporPressure,
			rd.WindDirection,
		)
		if err != nil {
			return nil, fmt.Errorf("insert reading for %q: %w", rd.DeviceName, err)
		}
		out = append(out, rd)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit readings: %w", err)
	}
	return out, nil
}

func (r *sqliteRepository) DeviceExists(ctx context.Context, deviceName string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, deviceExistsSQL, deviceName).Scan(&exists); err != nil {
		return false, fmt.Errorf("device exists %q: %w", deviceName, err)
	}
	return exists, nil
}

func (r *sqliteRepository) MaxPrecipitationSince(ctx context.Context, deviceName string, since time.Time) (types.MaxPrecipitation, error) {
	var maxPrecip sql.NullFloat64
	var lastTime sql.NullString
	err := r.db.QueryRowContext(ctx, getMaxPrecipitationSinceSQL, deviceName, db.FormatTime(since)).Scan(&maxPrecip, &lastTime)
	if err != nil {
		return types.MaxPrecipitation{}, fmt.Errorf("max precipitation %q: %w", deviceName, err)
	}
	if !maxPrecip.Valid || !lastTime.Valid {
		return types.MaxPrecipitation{}, fmt.Errorf("max precipitation %q: %w", deviceName, db.ErrNotFound)
	}
	t, err := db.ParseTime(lastTime.String)
	if err != nil {
		return types.MaxPrecipitation{}, fmt.Errorf("parse time %q: %w", lastTime.String, err)
	}
	return types.MaxPrecipitation{DeviceName: deviceName, MaxPrecipitation: maxPrecip.Float64, Time: t}, nil
}

func (r *sqliteRepository) FindAt(ctx context.Context, deviceName string, at time.Time) (types.ReadingSnapshot, error) {
	var s types.ReadingSnapshot
	err := r.db.QueryRowContext(ctx, getReadingAtSQL, deviceName, db.FormatTime(at)).
		Scan(&s.Temperature, &s.AtmosphericPressure, &s.SolarRadiation, &s.Precipitation)
	if err != nil {
		return types.ReadingSnapshot{}, fmt.Errorf("reading %q at %s: %w", deviceName, at, db.SQLiteErr(err))
	}
	return s, nil
}

func (r *sqliteRepository) MaxTemperatureBetween(ctx context.Context, tr db.TimeRange) (types.MaxTemperature, error) {
	var m types.MaxTemperature
	err := r.db.QueryRowContext(ctx, getMaxTemperatureBetweenSQL, db.FormatTime(tr.Start), db.FormatTime(tr.End)).
		Scan(&m.DeviceName, &m.MaxTemperature)
	if err != nil {
		return types.MaxTemperature{}, fmt.Errorf("max temperature: %w", db.SQLiteErr(err))
	}
	return m, nil
}

func (r *sqliteRepository) FindIDs(ctx context.Context, deviceName string, tr db.TimeRange) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, getReadingIDsSQL, deviceName, db.FormatTime(tr.Start), db.FormatTime(tr.End))
	if err != nil {
		return nil, fmt.Errorf("select reading ids: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close reading id rows", "error", err)
		}
	}()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(deleteReadingsByIDsSQL, placeholders(len(ids))), args...)
	if err != nil {
		return 0, fmt.Errorf("delete readings: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteRepository) UpdatePrecipitation(ctx context.Context, id string, precipitation float64) (types.Reading, error) {
	id, err := db.CheckID(id)
	if err != nil {
		return types.Reading{}, err
	}
	res, err := r.db.ExecContext(ctx, updatePrecipitationSQL, precipitation, id)
	if err != nil {
		return types.Reading{}, fmt.Errorf("update precipitation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Reading{}, fmt.Errorf("update precipitation %s: %w", id, err)
	}
	if n == 0 {
		return types.Reading{}, fmt.Errorf("update precipitation %s: %w", id, db.ErrNotFound)
	}
	return r.findByID(ctx, id)
}

func (r *sqliteRepository) findByID(ctx context.Context, id string) (types.Reading, error) {
	var rd types.Reading
	var ts string
	err := r.db.QueryRowContext(ctx, getReadingByIDSQL, id).Scan(
		&rd.ID,
		&rd.DeviceName,
		&rd.Precipitation,
		&rd.AtmosphericPressure,
		&rd.Latitude,
		&rd.Longitude,
		&rd.Temperature,
		&ts,
		&rd.Humidity,
		&rd.MaxWindSpeed,
		&rd.SolarRadiation,
		&rd.VaporPressure,
		&rd.WindDirection,
	)
	if err != nil {
		return types.Reading{}, fmt.Errorf("find reading %s: %w", id, db.SQLiteErr(err))
	}
	if rd.Time, err = db.ParseTime(ts); err != nil {
		return types.Reading{}, fmt.Errorf("parse time %q: %w", ts, err)
	}
	return rd, nil
}
