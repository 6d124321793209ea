package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"admin-auth-service/internal/client"
	"admin-auth-service/internal/models"
)

// KafkaSink publishes each entry to the audit topic so downstream consumers
// (alerting, SIEM ingestion) see security events in near real time. Entries
// are keyed by user ID to keep one admin's events in order.
type KafkaSink struct {
	producer *client.KafkaProducer
	topic    string
}

func NewKafkaSink(producer *client.KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, entry models.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	key := entry.UserID
	if key == "" {
		key = entry.IPAddress
	}

	return s.producer.ProduceMessage(ctx, s.topic, []byte(key), payload, map[string]string{
		"action": string(entry.Action),
	})
}
