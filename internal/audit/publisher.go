package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"radio-api/internal/client"
	"radio-api/internal/config"
	"radio-api/internal/fingerprint"
	"radio-api/internal/model"
	"radio-api/internal/util"
)

// Publisher emits security events to the audit topic. Publishing is
// best-effort: a broker outage degrades the audit trail, never the request
// path. With Kafka disabled events are logged and dropped.
type Publisher struct {
	producer    *client.KafkaProducer
	fingerprint *fingerprint.Manager
	topic       string
	enabled     bool
}

func NewPublisher(cfg *config.Config, producer *client.KafkaProducer, fp *fingerprint.Manager) *Publisher {
	return &Publisher{
		producer:    producer,
		fingerprint: fp,
		topic:       cfg.Kafka.AuditTopic,
		enabled:     cfg.Kafka.Enabled && producer != nil,
	}
}

// Publish records one security event. Callers pass eventType from the
// model constants; detail is free-form context.
func (p *Publisher) Publish(ctx context.Context, eventType, action, clientID, ipAddress, detail string) {
	event := model.SecurityEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Action:    action,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Bucket:    p.fingerprint.EventBucket(clientID),
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	if !p.enabled {
		util.Debug("Audit event (broker disabled)",
			zap.String("event_type", event.EventType),
			zap.String("action", event.Action),
			zap.String("detail", event.Detail))
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to marshal audit event", zap.Error(err))
		return
	}

	// Key on client id so a client's events stay ordered within a partition.
	if err := p.producer.ProduceMessage(ctx, p.topic, []byte(event.ClientID), payload); err != nil {
		util.Warn("Failed to publish audit event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}
