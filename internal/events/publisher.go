// Package events publishes load lifecycle events to Kafka so downstream consumers (search
// indexers, dashboards) can react to a committed load without polling load_runs.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/correlator-io/roster/internal/config"
	"github.com/correlator-io/roster/internal/records"
)

const (
	defaultTopic        = "roster.load.completed"
	defaultWriteTimeout = 10 * time.Second

	// EventTypeLoadCompleted is carried in the message header "event_type".
	EventTypeLoadCompleted = "load.completed"
)

// ErrPublishFailed is returned when the broker rejects or times out a write.
var ErrPublishFailed = errors.New("failed to publish event")

type (
	// Writer is the subset of *kafka.Writer the publisher needs.
	Writer interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	// Config configures the Kafka publisher.
	Config struct {
		Brokers      []string
		Topic        string
		WriteTimeout time.Duration
	}

	// LoadCompleted is the payload published after every committed load run.
	LoadCompleted struct {
		RunID         string                        `json:"run_id"`
		CompletedAt   time.Time                     `json:"completed_at"`
		Tables        map[string]records.TableCount `json:"tables"`
		Inserted      int                           `json:"inserted"`
		Updated       int                           `json:"updated"`
		Skipped       int                           `json:"skipped"`
		ViewRefreshed bool                          `json:"view_refreshed"`
	}

	// Publisher sends LoadCompleted events. A Publisher without a writer is a no-op, so the
	// loader runs unchanged when no brokers are configured.
	Publisher struct {
		writer       Writer
		topic        string
		writeTimeout time.Duration
		logger       *slog.Logger
	}
)

// LoadConfig reads KAFKA_BROKERS, KAFKA_TOPIC and KAFKA_WRITE_TIMEOUT.
func LoadConfig() *Config {
	return &Config{
		Brokers:      config.GetEnvList("KAFKA_BROKERS"),
		Topic:        config.GetEnvStr("KAFKA_TOPIC", defaultTopic),
		WriteTimeout: config.GetEnvDuration("KAFKA_WRITE_TIMEOUT", defaultWriteTimeout),
	}
}

// Enabled reports whether any broker is configured.
func (c *Config) Enabled() bool {
	return c != nil && len(c.Brokers) > 0
}

// NewPublisher builds a kafka-go writer from cfg. With no brokers it returns a no-op publisher.
func NewPublisher(cfg *Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Enabled() {
		return &Publisher{logger: logger}
	}

	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return NewPublisherWithWriter(w, topic, cfg.WriteTimeout, logger)
}

// NewPublisherWithWriter wraps an existing writer. Used by tests and by callers that share a writer.
func NewPublisherWithWriter(w Writer, topic string, writeTimeout time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Publisher{writer: w, topic: topic, writeTimeout: writeTimeout, logger: logger}
}

// NewLoadCompleted builds the event payload from a committed run's report.
func NewLoadCompleted(report *records.LoadReport) LoadCompleted {
	totals := report.Totals()
	tables := make(map[string]records.TableCount, len(report.Tables))

	for name, c := range report.Tables {
		tables[name] = *c
	}

	return LoadCompleted{
		RunID:         report.RunID.String(),
		CompletedAt:   report.CompletedAt.UTC(),
		Tables:        tables,
		Inserted:      totals.Inserted,
		Updated:       totals.Updated,
		Skipped:       totals.Skipped,
		ViewRefreshed: report.ViewRefreshed,
	}
}

// NotifyLoadCompleted publishes one message keyed by run id. It implements storage.LoadNotifier.
func (p *Publisher) NotifyLoadCompleted(ctx context.Context, report *records.LoadReport) error {
	if p.writer == nil || report == nil {
		return nil
	}

	payload, err := json.Marshal(NewLoadCompleted(report))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(report.RunID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeLoadCompleted)},
		},
		Time: report.CompletedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: topic %s: %w", ErrPublishFailed, p.topic, err)
	}

	p.logger.Debug("Published load completed event",
		slog.String("topic", p.topic),
		slog.String("run_id", report.RunID.String()),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}

	return p.writer.Close()
}
