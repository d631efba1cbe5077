package broadcaster

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"lob/domain/execution"
)

// Publisher delivers one encoded report. A nil error means the broker
// acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// SaramaPublisher sends through a sarama sync producer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "sarama producer")
	}
	return NewSaramaPublisherFrom(producer, topic), nil
}

// NewSaramaPublisherFrom wraps an existing producer.
func NewSaramaPublisherFrom(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

// Publish ignores ctx; sarama's sync producer has its own timeouts.
func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return errors.Wrapf(err, "sarama send to %s", p.topic)
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher writes reports to the log instead of a broker. Used when no
// brokers are configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, key, value []byte) error {
	r, err := execution.Unmarshal(value)
	if err != nil {
		return err
	}
	p.log.Info("execution report",
		zap.ByteString("key", key),
		zap.Uint64("seq", r.Seq),
		zap.Stringer("kind", r.Kind),
		zap.String("order_id", r.OrderID),
		zap.Stringer("side", r.Side),
		zap.Float64("price", r.Price),
		zap.Float64("quantity", r.Quantity),
		zap.Float64("remaining", r.Remaining),
		zap.String("reason", r.Reason),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
