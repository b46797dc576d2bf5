package kafka

import (
	"context"
	"encoding/json"

	"github.com/brianYuDesign/balance-engine/pkg/mkafka"
	"github.com/brianYuDesign/balance-engine/pkg/mmodel"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ProducerRepository publishes mutation records and dead-letter wrappers to
// the durable log.
type ProducerRepository interface {
	PublishMutation(ctx context.Context, request *mmodel.MutationRequest) error
	PublishDLQ(ctx context.Context, message *mmodel.DLQMessage) error
}

// KafkaProducerRepository is a kafka-specific implementation of ProducerRepository.
type KafkaProducerRepository struct {
	connection *mkafka.KafkaConnection
	topic      string
	dlqTopic   string
}

// NewKafkaProducerRepository returns a new instance of KafkaProducerRepository using the given Kafka connection.
func NewKafkaProducerRepository(kc *mkafka.KafkaConnection, topic, dlqTopic string) *KafkaProducerRepository {
	return &KafkaProducerRepository{
		connection: kc,
		topic:      topic,
		dlqTopic:   dlqTopic,
	}
}

// PublishMutation publishes a mutation record keyed by its partition key, so
// every mutation of one account lands on the same partition. Event and
// transaction ids travel in headers for consumers that only sniff envelopes.
func (r *KafkaProducerRepository) PublishMutation(ctx context.Context, request *mmodel.MutationRequest) error {
	client, err := r.connection.GetProducer(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: r.topic,
		Key:   []byte(request.PartitionKey),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event-id", Value: []byte(request.EventID)},
			{Key: "transaction-id", Value: []byte(request.TransactionID)},
		},
	}

	return client.ProduceSync(ctx, record).FirstErr()
}

// PublishDLQ routes a poisoned record to the dead-letter topic.
func (r *KafkaProducerRepository) PublishDLQ(ctx context.Context, message *mmodel.DLQMessage) error {
	client, err := r.connection.GetProducer(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: r.dlqTopic,
		Key:   []byte(message.OriginalKey),
		Value: payload,
	}

	return client.ProduceSync(ctx, record).FirstErr()
}
