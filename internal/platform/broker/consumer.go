package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"fleetWs/internal/platform/metrics"
	"fleetWs/internal/shared/logging"
)

// Record is a domain event read from Kafka, ready to be republished on the router.
type Record struct {
	Domain        string
	Action        string
	Data          json.RawMessage
	Source        string
	CorrelationID string
}

// RecordSink receives decoded Kafka records.
type RecordSink func(ctx context.Context, rec Record) error

type KafkaConsumer struct {
	reader *kafka.Reader
	topic  string
	logger *slog.Logger
}

func NewKafkaConsumer(brokers []string, groupID string, topic string, logger *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}),
		topic:  topic,
		logger: logging.Component(logger, "kafka").With(slog.String("topic", topic)),
	}
}

// Consume reads until ctx ends. Read and sink errors are logged and the loop continues.
func (c *KafkaConsumer) Consume(ctx context.Context, sink RecordSink) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.logger.Warn("kafka read error", slog.Any("error", err))
			if !sleepCtx(ctx, ReconnectDelay(1)) {
				return ctx.Err()
			}
			continue
		}
		rec := decodeRecord(m.Topic, m.Value)
		c.logger.Debug("kafka record consumed",
			slog.Int("partition", m.Partition),
			slog.Int64("offset", m.Offset),
			slog.String("domain", rec.Domain),
			slog.String("action", rec.Action),
			slog.String("correlationId", rec.CorrelationID),
		)
		if err := sink(ctx, rec); err != nil {
			metrics.KafkaRecords.WithLabelValues(c.topic, "error").Inc()
			c.logger.Warn("kafka record not republished", slog.String("domain", rec.Domain), slog.String("action", rec.Action), slog.Any("error", err))
			continue
		}
		metrics.KafkaRecords.WithLabelValues(c.topic, "ok").Inc()
	}
}

type rawRecord struct {
	Domain        string          `json:"domain"`
	Entity        string          `json:"entity"`
	Action        string          `json:"action"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
}

func decodeRecord(topic string, value []byte) Record {
	var raw rawRecord
	if err := json.Unmarshal(value, &raw); err != nil {
		domain, action := inferDomainActionFromTopic(topic)
		data, _ := json.Marshal(string(value))
		return Record{Domain: domain, Action: action, Data: data, Source: "kafka:" + topic}
	}

	topicDomain, topicAction := inferDomainActionFromTopic(topic)
	rec := Record{
		Domain:        firstNonEmpty(raw.Domain, raw.Entity, topicDomain),
		Action:        firstNonEmpty(raw.Action, topicAction),
		Data:          raw.Data,
		Source:        firstNonEmpty(raw.Source, "kafka:"+topic),
		CorrelationID: raw.CorrelationID,
	}
	if len(rec.Data) == 0 {
		rec.Data = json.RawMessage("null")
	}
	return rec
}

// inferDomainActionFromTopic reads "<...>.<domain>.<action>" topics; a single
// segment topic yields that segment as domain and "unknown" as action.
func inferDomainActionFromTopic(topic string) (string, string) {
	parts := strings.Split(topic, ".")
	if len(parts) >= 2 {
		domain := strings.TrimSpace(parts[len(parts)-2])
		action := strings.TrimSpace(parts[len(parts)-1])
		if domain != "" && action != "" {
			return domain, action
		}
	}
	if domain := normalizeTopic(topic); domain != "" {
		return domain, "unknown"
	}
	return "", "unknown"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizeTopic(topic string) string {
	if idx := strings.LastIndex(topic, "."); idx >= 0 {
		topic = topic[idx+1:]
	}
	return strings.TrimSpace(topic)
}

// StartKafkaBridge runs one consumer per topic, feeding every record to sink.
func StartKafkaBridge(ctx context.Context, sink RecordSink, brokers []string, groupID string, topics []string, logger *slog.Logger) {
	if len(brokers) == 0 {
		// kafka.NewReader panics on an empty broker list.
		return
	}
	for _, topic := range topics {
		go func(tp string) {
			consumer := NewKafkaConsumer(brokers, groupID, tp, logger)
			if err := consumer.Consume(ctx, sink); err != nil && !errors.Is(err, context.Canceled) {
				consumer.logger.Warn("kafka consumer stopped", slog.Any("error", err))
			}
		}(topic)
	}
}
