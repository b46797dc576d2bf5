package mkafka

import (
	"context"
	"time"

	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConnection is a hub which deals with kafka clients. A single producer
// client is shared by the outbox writer and the sweeper; partition consumers
// get a dedicated client each because they consume at offsets recovered from
// the relational store, not from the broker's group coordinator.
type KafkaConnection struct {
	Brokers   []string
	ClientID  string
	Connected bool
	Logger    mlog.Logger

	producer *kgo.Client
}

// Connect creates and pings the shared producer client.
func (kc *KafkaConnection) Connect(ctx context.Context) error {
	kc.Logger.Info("Connecting to kafka...")

	client, err := kgo.NewClient(
		kgo.SeedBrokers(kc.Brokers...),
		kgo.ClientID(kc.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordRetries(10),
		kgo.DialTimeout(5*time.Second),
	)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx); err != nil {
		kc.Logger.Errorf("KafkaConnection.Ping %v", err)

		client.Close()

		return err
	}

	kc.Logger.Info("Connected to kafka ✅ ")

	kc.Connected = true
	kc.producer = client

	return nil
}

// GetProducer returns the shared producer client, initializing it if necessary.
func (kc *KafkaConnection) GetProducer(ctx context.Context) (*kgo.Client, error) {
	if kc.producer == nil {
		if err := kc.Connect(ctx); err != nil {
			kc.Logger.Errorf("ERRCONECT %s", err)
			return nil, err
		}
	}

	return kc.producer, nil
}

// NewPartitionConsumer creates a client pinned to a single partition of topic,
// consuming from next (the offset after the last committed one). A negative
// next starts at the beginning of the partition.
func (kc *KafkaConnection) NewPartitionConsumer(topic string, partition int32, next int64) (*kgo.Client, error) {
	offset := kgo.NewOffset().AtStart()
	if next >= 0 {
		offset = kgo.NewOffset().At(next)
	}

	return kgo.NewClient(
		kgo.SeedBrokers(kc.Brokers...),
		kgo.ClientID(kc.ClientID),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			topic: {partition: offset},
		}),
		kgo.FetchMaxWait(time.Second),
		kgo.DialTimeout(5*time.Second),
	)
}

// Close tears down the shared producer.
func (kc *KafkaConnection) Close() {
	if kc.producer != nil {
		kc.producer.Close()
		kc.producer = nil
		kc.Connected = false
	}
}
