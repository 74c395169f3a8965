package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"weatherapi-server/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the process-wide database handle. Exactly one of SQL or Mongo is set,
// according to Driver. It is opened once at startup and shared by repositories.
type Store struct {
	Driver string
	SQL    *sql.DB
	Mongo  *mongo.Database

	mongoClient *mongo.Client
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.Driver {
	case config.DriverMongoDB:
		client, database, err := OpenMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: cfg.Driver, Mongo: database, mongoClient: client}, nil
	case config.DriverSQLite:
		sqlDB, err := OpenSQLite(cfg, logger)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: cfg.Driver, SQL: sqlDB}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.SQL != nil {
		var ok int
		if err := s.SQL.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
			return err
		}
		if ok != 1 {
			return errors.New("unexpected ping result")
		}
		return nil
	}
	if s.mongoClient != nil {
		return s.mongoClient.Ping(ctx, nil)
	}
	return errors.New("store not open")
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.SQL != nil {
		return s.SQL.Close()
	}
	if s.mongoClient != nil {
		return s.mongoClient.Disconnect(ctx)
	}
	return nil
}

// OpenSQLite opens the sqlite database. At debug level every statement is
// logged through the logging connector.
func OpenSQLite(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogLevel <= slog.LevelDebug {
		db = sql.OpenDB(NewLoggingConnector(dsn, logger))
	} else {
		db, err = sql.Open(config.DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// SQLite is typically best with low concurrency; tune if needed.
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	path := cfg.Path
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
