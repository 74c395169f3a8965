package weather

import (
	"context"
	"fmt"
	"log/slog"

	"weatherapi-server/internal/modules/weather/types"
	"weatherapi-server/internal/mqtt"
)

// MQTTSubscriber interface for attaching message handlers
type MQTTSubscriber interface {
	SetMessageHandler(handler mqtt.MessageHandler)
}

// Ingester stores readings published by a station.
type Ingester interface {
	Ingest(ctx context.Context, deviceName string, payload []byte) ([]types.Reading, error)
}

// RegisterMQTTHandler routes messages published on
// weather-stations/{deviceName}/readings to the ingester. Failed messages are
// logged and dropped.
func RegisterMQTTHandler(subscriber MQTTSubscriber, ingester Ingester, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(ctx context.Context, topic string, payload []byte) error {
		deviceName := mqtt.TopicSegment(topic, 1)
		if deviceName == "" {
			return fmt.Errorf("topic %q has no device segment", topic)
		}

		stored, err := ingester.Ingest(ctx, deviceName, payload)
		if err != nil {
			logger.Error("failed to ingest readings",
				"deviceName", deviceName,
				"error", err,
			)
			return err
		}

		logger.Debug("successfully stored readings",
			"deviceName", deviceName,
			"count", len(stored),
		)
		return nil
	})
}
