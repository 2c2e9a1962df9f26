package kafka

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/domain"
)

// Publisher emits game lifecycle events to Kafka. Publishing is fire and
// forget from the caller's perspective; delivery failures are logged by the
// error drain, never returned to a game request.
type Publisher struct {
	config   *config.KafkaConfig
	producer sarama.AsyncProducer
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		config:   cfg,
		producer: producer,
		logger:   logger,
	}

	// Drain delivery errors
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Error("failed to deliver game event", "error", err)
		}
	}()

	return p, nil
}

// Publish enqueues one game event, keyed by game ID so a game's events stay
// in partition order.
func (p *Publisher) Publish(event domain.GameEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}
	return nil
}

// Close flushes pending events and shuts the producer down
func (p *Publisher) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	return err
}
