package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/config"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/httpapi"
	"weatherapi-server/internal/migrate"
	"weatherapi-server/internal/modules/users"
	"weatherapi-server/internal/modules/weather"
	"weatherapi-server/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"driver", cfg.Driver,
		"databaseName", cfg.DatabaseName,
		"sqlitePath", cfg.Path,
		"maxOpenConns", cfg.MaxOpenConns,
		"maxIdleConns", cfg.MaxIdleConns,
		"connMaxLifetime", cfg.ConnMaxLifetime,
		"tokenTTL", cfg.TokenTTL,
		"corsAllowedOrigins", cfg.CORSAllowedOrigins,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := store.Close(closeCtx); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()
	logger.Info("database connection successful")

	tokens := auth.NewTokenService(cfg.TokenSecret, cfg.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	mux := httpapi.NewMux(store)
	accounts, err := users.RegisterFeature(mux, store, tokens, hasher, logger)
	if err != nil {
		return err
	}
	stations, err := weather.RegisterFeature(mux, store, logger)
	if err != nil {
		return err
	}

	gate := auth.NewGate(tokens, accounts, logger.With("component", "gate"), httpapi.PublicPaths)
	srv := httpapi.NewServer(cfg, httpapi.NewHandler(cfg, mux, gate.Handler, logger))

	var subscriber *mqtt.Subscriber
	if cfg.MQTTBroker != "" {
		// The handler is set before Connect so messages queued by the broker
		// right after CONNACK are not dropped.
		subscriber = mqtt.NewSubscriber(cfg, logger.With("component", "mqtt"))
		weather.RegisterMQTTHandler(subscriber, stations, logger.With("module", "weather"))

		// Use a short timeout for initial MQTT connect so we don't block startup when broker is down.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		logger.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// OpenStore opens the configured backend and brings its schema up to date.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*db.Store, error) {
	store, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store.SQL != nil {
		if _, err := migrate.Run(ctx, store.SQL, logger); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
	}
	return store, nil
}
