package repository

import (
	"context"
	"strconv"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
)

// DefaultORBTopic carries every ORB scan snapshot.
const DefaultORBTopic = "scanner.orb"

type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaResultPublisher writes scan snapshots keyed by their unix-milli timestamp.
type KafkaResultPublisher struct {
	p     messagePublisher
	topic string
}

var _ domrepo.ResultPublisher = (*KafkaResultPublisher)(nil)

func NewKafkaResultPublisher(p messagePublisher, topic string) *KafkaResultPublisher {
	if topic == "" {
		topic = DefaultORBTopic
	}
	return &KafkaResultPublisher{p: p, topic: topic}
}

func (k *KafkaResultPublisher) PublishORB(ctx context.Context, r *models.ORBScanResult) error {
	key := strconv.AppendInt(nil, r.Timestamp.UnixMilli(), 10)
	return k.p.Publish(ctx, k.topic, key, r)
}

func (k *KafkaResultPublisher) Close() error {
	return k.p.Close()
}

// NopPublisher drops results when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishORB(context.Context, *models.ORBScanResult) error { return nil }
func (NopPublisher) Close() error                                           { return nil }
