package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// GameEvent represents a lifecycle event about a game
type GameEvent struct {
	EventType   string          `json:"event_type"` // game.imported
	HouseholdID string          `json:"household_id"`
	GameID      int64           `json:"game_id"`
	BGGID       int64           `json:"bgg_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// LinkEvent represents a lifecycle event about an expansion link
type LinkEvent struct {
	EventType       string    `json:"event_type"` // link.created, link.completed
	HouseholdID     string    `json:"household_id"`
	LinkID          int64     `json:"link_id"`
	BaseGameID      *int64    `json:"base_game_id,omitempty"`
	BaseBGGID       int64     `json:"base_bgg_id,omitempty"`
	ExpansionGameID *int64    `json:"expansion_game_id,omitempty"`
	ExpansionBGGID  int64     `json:"expansion_bgg_id,omitempty"`
	DisplayName     string    `json:"display_name,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// PublishGameEvent publishes a game event to Kafka
func (p *Producer) PublishGameEvent(ctx context.Context, event *GameEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishGameEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.HouseholdID + "|game|" + strconv.FormatInt(event.GameID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "household_id", Value: []byte(event.HouseholdID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish game event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"game_id":    event.GameID,
		"bgg_id":     event.BGGID,
	}).Debug("Published game event")

	return nil
}

// PublishLinkEvent publishes a link event to Kafka
func (p *Producer) PublishLinkEvent(ctx context.Context, event *LinkEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishLinkEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.HouseholdID + "|link|" + strconv.FormatInt(event.LinkID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "household_id", Value: []byte(event.HouseholdID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish link event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"link_id":    event.LinkID,
	}).Debug("Published link event")

	return nil
}
