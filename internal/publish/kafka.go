package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"nfcexposure/internal/config"
	"nfcexposure/internal/model"
)

type Publisher interface {
	Publish(ctx context.Context, res model.ExperimentResult) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends every experiment result as one JSON message keyed by experiment id.
type KafkaPublisher struct {
	w      messageWriter
	logger *slog.Logger
}

func NewKafka(cfg config.KafkaConfig, logger *slog.Logger) Publisher {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka publish disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("kafka publish enabled", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{w: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, res model.ExperimentResult) error {
	msg, err := encodeMessage(res)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		if p.logger != nil {
			p.logger.Warn("kafka publish error", "experiment", res.ExperimentID, "err", err)
		}
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func encodeMessage(res model.ExperimentResult) (kafka.Message, error) {
	value, err := json.Marshal(res)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(res.ExperimentID),
		Value: value,
		Time:  res.CompletedAt,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(res.RunID)},
			{Key: "variant", Value: []byte(res.Variant)},
		},
	}, nil
}
