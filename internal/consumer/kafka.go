package consumer

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/gosight/gosight/scriptgen/internal/config"
)

// DefaultRecordingsTopic is used when kafka.topics.recordings is not set
const DefaultRecordingsTopic = "gosight.replay.recordings"

// MessageProcessor interface for processing messages
type MessageProcessor interface {
	Process(ctx context.Context, value []byte) error
	Flush()
}

// messageReader is the subset of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer consumes recordings from Kafka
type KafkaConsumer struct {
	reader    messageReader
	topic     string
	group     string
	processor MessageProcessor
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(cfg config.KafkaConfig, processor MessageProcessor) (*KafkaConsumer, error) {
	topic := cfg.Topics["recordings"]
	if topic == "" {
		topic = DefaultRecordingsTopic
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,   // 1KB
		MaxBytes:       100e6, // recordings with full snapshots are large
		CommitInterval: 1000,
		StartOffset:    kafka.LastOffset,
	})

	return &KafkaConsumer{
		reader:    reader,
		topic:     topic,
		group:     cfg.ConsumerGroup,
		processor: processor,
	}, nil
}

// Start begins consuming messages
func (c *KafkaConsumer) Start(ctx context.Context) {
	log.Info().
		Str("topic", c.topic).
		Str("group", c.group).
		Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Kafka consumer stopped")
			return
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("Failed to fetch message")
				continue
			}

			// A recording that cannot be converted is logged and committed
			// so it does not block the partition.
			if err := c.processor.Process(ctx, msg.Value); err != nil {
				log.Error().
					Err(err).
					Str("key", string(msg.Key)).
					Int64("offset", msg.Offset).
					Int("bytes", len(msg.Value)).
					Msg("Failed to process recording")
			}

			// Commit
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				log.Error().Err(err).Msg("Failed to commit message")
			}
		}
	}
}

// Close closes the consumer
func (c *KafkaConsumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	// Flush remaining rows before closing
	c.processor.Flush()
	return c.reader.Close()
}
