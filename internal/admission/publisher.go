package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RouteToVasanth/Quantum-Care/pkg/config"
	"github.com/RouteToVasanth/Quantum-Care/pkg/interfaces"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

// messageWriter is the part of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards every generated ADT message to a Kafka topic,
// keyed by patient ID so a patient's messages stay ordered.
type KafkaPublisher struct {
	writer messageWriter
}

// NewPublisher returns a Kafka publisher when the feed is enabled and a
// no-op publisher otherwise
func NewPublisher(cfg *config.KafkaConfig) interfaces.MessagePublisher {
	if !cfg.Enabled {
		return noopPublisher{}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Publish implements MessagePublisher
func (p *KafkaPublisher) Publish(ctx context.Context, msg *types.StoredMessage) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.PatientID),
		Value: []byte(msg.Raw),
		Headers: []kafka.Header{
			{Key: "message_type", Value: []byte(msg.MessageType)},
			{Key: "control_id", Value: []byte(msg.ControlID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s for patient %s: %w", msg.MessageType, msg.PatientID, err)
	}
	return nil
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *types.StoredMessage) error { return nil }

func (noopPublisher) Close() error { return nil }
