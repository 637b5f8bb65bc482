// Package kafka publishes import events to a Kafka cluster.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/bankfeedhq/camt54-sync-backend/internal/events"
)

// Publisher writes JSON-encoded events to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher connects to the given brokers. When defaultTopic is set, all
// events go there regardless of the topic passed to Publish.
func NewPublisher(brokers []string, defaultTopic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  defaultTopic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{Value: data}
	// kafka-go rejects messages that set a topic when the writer has one.
	if p.writer.Topic == "" {
		msg.Topic = topic
	}

	return p.writer.WriteMessages(context.Background(), msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
