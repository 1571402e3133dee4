package producer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gosight/gosight/scriptgen/internal/config"
)

// DefaultScriptsTopic is used when kafka.topics.scripts is not set
const DefaultScriptsTopic = "gosight.replay.scripts"

// ErrNoWriter is returned when publishing to a topic that is not configured
var ErrNoWriter = errors.New("no kafka writer configured")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writers map[string]messageWriter
}

func NewKafkaProducer(cfg config.KafkaConfig) (*KafkaProducer, error) {
	topics := map[string]string{"scripts": DefaultScriptsTopic}
	if t := cfg.Topics["scripts"]; t != "" {
		topics["scripts"] = t
	}

	writers := make(map[string]messageWriter)
	for name, topic := range topics {
		writers[name] = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              10,
			BatchTimeout:           time.Millisecond * 100,
			Async:                  true,
			AllowAutoTopicCreation: true,
		}
	}

	return &KafkaProducer{writers: writers}, nil
}

// PublishScript writes a generated script keyed by session so all scripts
// for one session land on the same partition
func (p *KafkaProducer) PublishScript(ctx context.Context, key string, msg interface{}) error {
	w, ok := p.writers["scripts"]
	if !ok {
		return ErrNoWriter
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (p *KafkaProducer) Close() error {
	var errs []error
	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
