package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
)

// defaultTopic — топик, в который зеркалируются зафиксированные смены статуса.
const defaultTopic = "order-status-events"

// Producer зеркалирует события статуса в Kafka для остальных сервисов.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Entry
}

// NewProducer создает новый Kafka producer.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование идемпотентного продьюсера

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    defaultTopic,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// MirrorStatus публикует событие смены статуса; ключ партиционирования —
// номер заказа, поэтому события одного заказа сохраняют порядок.
func (p *Producer) MirrorStatus(event domain.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.OrderKey),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic":     p.topic,
			"order_key": event.OrderKey,
		}).Error("failed to send status event to kafka")
		return fmt.Errorf("send status event: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     p.topic,
		"order_key": event.OrderKey,
		"partition": partition,
		"offset":    offset,
	}).Debug("status event mirrored to kafka")

	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

var _ domain.StatusMirror = (*Producer)(nil)
