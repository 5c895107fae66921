package kafka

import (
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"ShopHub/chat"
)

// Producer exports chat events. It implements chat.EventSink; delivery is
// best effort and failures only get logged, the chat flow never blocks on
// Kafka.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string, config *sarama.Config) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{producer: producer, topic: topic}, nil
}

func (p *Producer) MessageSent(ev chat.MessageEvent) {
	if err := p.send(p.topic, ev.ConversationID, ev); err != nil {
		log.Printf("Failed to export chat event for conversation %s: %v", ev.ConversationID, err)
	}
}

func (p *Producer) send(topic string, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(jsonValue),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return err
	}

	log.Printf("Chat event sent to partition %d at offset %d", partition, offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
