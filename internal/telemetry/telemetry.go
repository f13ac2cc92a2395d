// Package telemetry publishes JSON events to Kafka (spec.md §4.6's
// "optional telemetry sink" external interface); internal/peerd
// publishes one per FSM transition, without NOTIFICATION detail or a
// raw frame. Grounded on internal/kafka's NewStateConsumer client
// construction, here used to produce rather than consume, and on
// internal/history/writer.go's zstd.Encoder singleton for compressing
// the raw frame an event may carry.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"

	"github.com/route-beacon/bgp-speaker/internal/metrics"
)

var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("telemetry: zstd encoder init: %v", err))
	}
}

// Event is one published telemetry record: an FSM transition, with an
// optional NOTIFICATION detail and the raw frame that triggered it.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	PeerID       string    `json:"peer_id"`
	FromState    string    `json:"from_state"`
	ToState      string    `json:"to_state"`
	EventKind    string    `json:"event_kind"`
	NotifyCode   *uint8    `json:"notify_code,omitempty"`
	NotifySub    *uint8    `json:"notify_subcode,omitempty"`
	RawFrame     []byte    `json:"raw_frame,omitempty"`
}

// Publisher is the collaborator internal/peerd drives. Kept as an
// interface so callers can substitute a capturing fake in tests.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// KafkaPublisher is the production Publisher.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, clientID, topic string, tlsCfg *tls.Config, saslMech sasl.Mechanism, logger *zap.Logger) (*KafkaPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if saslMech != nil {
		opts = append(opts, kgo.SASL(saslMech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// encodePayload compresses the attached raw frame and marshals ev to
// JSON. Split out from Publish so the encoding step is testable without
// a broker.
func encodePayload(ev Event) ([]byte, error) {
	if ev.RawFrame != nil {
		ev.RawFrame = zstdEncoder.EncodeAll(ev.RawFrame, nil)
	}
	return json.Marshal(ev)
}

// Publish compresses the attached raw frame, marshals ev to JSON and
// produces it synchronously, recording a publish-error metric rather
// than failing the caller — telemetry loss must never stall the FSM.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := encodePayload(ev)
	if err != nil {
		metrics.TelemetryPublishErrorsTotal.WithLabelValues("marshal").Inc()
		return fmt.Errorf("marshal telemetry event: %w", err)
	}

	rec := &kgo.Record{Topic: p.topic, Value: payload}
	result := p.client.ProduceSync(ctx, rec)
	if err := result.FirstErr(); err != nil {
		metrics.TelemetryPublishErrorsTotal.WithLabelValues("produce").Inc()
		p.logger.Warn("telemetry publish failed", zap.Error(err), zap.String("peer_id", ev.PeerID))
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
