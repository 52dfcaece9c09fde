package repository

import (
	"context"
	"time"

	"FlareCast/internal/domain/models"
	domrepo "FlareCast/internal/domain/repository"
	pkgkafka "FlareCast/pkg/kafka"
)

// KafkaAlertPublisher emits completed predictions to the alert topic.
// Messages are keyed by risk level so downstream consumers keep per-level
// ordering.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

type predictionEvent struct {
	Timestamp         string  `json:"timestamp"`
	MClassProbability float64 `json:"m_class_probability"`
	RiskLevel         string  `json:"risk_level"`
	ModelVersion      string  `json:"model_version"`
}

func (p *KafkaAlertPublisher) PublishPrediction(ctx context.Context, pred models.Prediction) error {
	ev := predictionEvent{
		Timestamp:         pred.Timestamp.UTC().Format(time.RFC3339),
		MClassProbability: pred.MClassProbability,
		RiskLevel:         string(pred.RiskLevel),
		ModelVersion:      pred.ModelVersion,
	}
	return p.producer.Publish(ctx, p.topic, []byte(pred.RiskLevel), ev)
}

func (p *KafkaAlertPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)
