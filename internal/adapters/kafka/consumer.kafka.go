package kafka

import (
	"context"
	"errors"

	"github.com/brianYuDesign/balance-engine/pkg/mkafka"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one raw log record handed to the partition worker.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// PartitionPoller reads records of exactly one partition, starting at the
// offset recovered from the relational store. Poll blocks until records
// arrive or the context expires; an expired context returns no records and
// no error, everything else transient surfaces as an error.
type PartitionPoller interface {
	Poll(ctx context.Context, maxRecords int) ([]*Message, error)
	Close()
}

// KafkaPartitionPoller is a kafka-specific implementation of PartitionPoller.
type KafkaPartitionPoller struct {
	client *kgo.Client
}

// NewKafkaPartitionPoller creates a poller pinned to (topic, partition)
// consuming from next, the offset after the last committed record.
func NewKafkaPartitionPoller(kc *mkafka.KafkaConnection, topic string, partition int32, next int64) (*KafkaPartitionPoller, error) {
	client, err := kc.NewPartitionConsumer(topic, partition, next)
	if err != nil {
		return nil, err
	}

	return &KafkaPartitionPoller{client: client}, nil
}

// Poll fetches up to maxRecords records.
func (p *KafkaPartitionPoller) Poll(ctx context.Context, maxRecords int) ([]*Message, error) {
	fetches := p.client.PollRecords(ctx, maxRecords)

	if fetches.IsClientClosed() {
		return nil, kgo.ErrClientClosed
	}

	for _, fetchErr := range fetches.Errors() {
		if errors.Is(fetchErr.Err, context.DeadlineExceeded) || errors.Is(fetchErr.Err, context.Canceled) {
			continue
		}

		return nil, fetchErr.Err
	}

	messages := make([]*Message, 0, fetches.NumRecords())

	fetches.EachRecord(func(record *kgo.Record) {
		messages = append(messages, &Message{
			Topic:     record.Topic,
			Partition: record.Partition,
			Offset:    record.Offset,
			Key:       record.Key,
			Value:     record.Value,
		})
	})

	return messages, nil
}

// Close tears down the underlying client.
func (p *KafkaPartitionPoller) Close() {
	p.client.Close()
}
