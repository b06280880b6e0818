package engine

import (
	"context"
	"io"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/errors"
	jsonpool "github.com/talentsync/talentsync/pkg/json"
	"github.com/talentsync/talentsync/pkg/metrics"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert describes a source condition that needs operator attention.
type Alert struct {
	Source       string    `json:"source"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	RunID        string    `json:"run_id,omitempty"`
	FailureCount int       `json:"failure_count,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// AlertSink delivers an alert to one destination.
type AlertSink interface {
	Name() string
	Deliver(ctx context.Context, alert Alert) error
}

// LogSink writes alerts to the engine log. It is always installed, so an
// alert is visible even when no external delivery is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name identifies the sink in delivery failure logs.
func (s *LogSink) Name() string { return "log" }

// Deliver writes the alert at a level matching its severity.
func (s *LogSink) Deliver(_ context.Context, alert Alert) error {
	fields := []zap.Field{
		zap.String("source", alert.Source),
		zap.String("severity", alert.Severity),
		zap.String("run_id", alert.RunID),
		zap.Int("failure_count", alert.FailureCount),
	}
	if alert.Severity == SeverityCritical {
		s.logger.Error(alert.Message, fields...)
	} else {
		s.logger.Warn(alert.Message, fields...)
	}
	return nil
}

// KafkaSink publishes alerts to a Kafka topic. Messages are keyed by
// source name so per-source ordering is preserved across partitions.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink connects a synchronous producer to the configured brokers.
func NewKafkaSink(cfg config.AlertingConfig) (*KafkaSink, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create kafka alert producer")
	}

	return &KafkaSink{producer: producer, topic: cfg.Topic}, nil
}

// Name identifies the sink in delivery failure logs.
func (s *KafkaSink) Name() string { return "kafka" }

// Deliver publishes the JSON-encoded alert.
func (s *KafkaSink) Deliver(_ context.Context, alert Alert) error {
	payload, err := jsonpool.Marshal(alert)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode alert")
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(alert.Source),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to publish alert")
	}
	return nil
}

// Close shuts down the producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

// AlertDispatcher fans one alert out to every installed sink. Delivery
// failures are logged and never propagate into the sync run that raised
// the alert.
type AlertDispatcher struct {
	sinks  []AlertSink
	logger *zap.Logger
}

// NewAlertDispatcher creates a dispatcher over the given sinks.
func NewAlertDispatcher(logger *zap.Logger, sinks ...AlertSink) *AlertDispatcher {
	return &AlertDispatcher{sinks: sinks, logger: logger}
}

// Dispatch sends the alert to all sinks.
func (d *AlertDispatcher) Dispatch(ctx context.Context, alert Alert) {
	if alert.OccurredAt.IsZero() {
		alert.OccurredAt = time.Now().UTC()
	}

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			d.logger.Error("alert delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("source", alert.Source),
				zap.Error(err))
		}
	}

	metrics.AlertsEmitted.WithLabelValues(alert.Source, alert.Severity).Inc()
}

// Close shuts down sinks that hold connections.
func (d *AlertDispatcher) Close() error {
	var firstErr error
	for _, sink := range d.sinks {
		if closer, ok := sink.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
