package kafka

import (
	"github.com/IBM/sarama"
)

// ChatEventInterceptor tags every outgoing event with its origin so
// downstream consumers can tell chat exports apart from other producers on
// shared topics.
type ChatEventInterceptor struct{}

func NewChatEventInterceptor() *ChatEventInterceptor {
	return &ChatEventInterceptor{}
}

func (i *ChatEventInterceptor) OnSend(msg *sarama.ProducerMessage) {
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("origin"),
		Value: []byte("shophub-chat"),
	})
}
