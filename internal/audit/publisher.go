package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"
)

// producer is the slice of the Kafka client the publisher needs.
type producer interface {
	Produce(ctx context.Context, topic string, key, value []byte)
}

// Publisher mirrors committed chain entries to a Kafka topic for SIEM
// and compliance fan-out. Fire-and-forget: the chain is the source of
// truth and a mirror failure never fails the transfer that produced the
// entry.
type Publisher struct {
	producer producer
	topic    string
	logger   *slog.Logger
}

func NewPublisher(producer producer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

type mirrorPayload struct {
	Seq         uint64 `json:"seq"`
	Actor       string `json:"actor"`
	Action      string `json:"action"`
	SubjectType string `json:"subject_type,omitempty"`
	SubjectID   string `json:"subject_id,omitempty"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity"`
	Timestamp   string `json:"timestamp"`
	PrevHash    string `json:"prev_hash"`
	Hash        string `json:"hash"`
}

// Publish serializes the entry and hands it to the producer. Keyed by
// sequence number so a partitioned topic preserves per-partition order.
func (p *Publisher) Publish(ctx context.Context, e *Entry) {
	payload, err := json.Marshal(mirrorPayload{
		Seq:         e.Seq,
		Actor:       e.Actor,
		Action:      string(e.Action),
		SubjectType: e.SubjectType,
		SubjectID:   e.SubjectID,
		Detail:      e.Detail,
		Severity:    string(e.Severity),
		Timestamp:   e.Timestamp.Format(time.RFC3339Nano),
		PrevHash:    e.PrevHash,
		Hash:        e.Hash,
	})
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "marshal audit mirror payload", "seq", e.Seq, "error", err)
		}
		return
	}
	p.producer.Produce(ctx, p.topic, []byte(strconv.FormatUint(e.Seq, 10)), payload)
}
