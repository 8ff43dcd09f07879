package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// RoomEvent is the cross-instance "something changed, re-fetch" signal. The
// origin identifies the publishing instance so it can skip its own events on
// the consumer side.
type RoomEvent struct {
	Event     string `json:"event"`
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`
}

const EventRoomsChanged = "room:updated"

// Producer publishes room events to Kafka so sibling instances can wake their
// own websocket clients. Implements services.EventSink.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	origin   string
}

func NewProducer(brokers []string, topic string, config *sarama.Config) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Producer{
		producer: producer,
		topic:    topic,
		origin:   uuid.New().String(),
	}, nil
}

func (p *Producer) Origin() string { return p.origin }

// NotifyRoomsChanged publishes a room:updated event. Best effort: failures are
// logged and dropped, never surfaced to the mutation path.
func (p *Producer) NotifyRoomsChanged() {
	event := RoomEvent{
		Event:     EventRoomsChanged,
		Origin:    p.origin,
		Timestamp: time.Now().Unix(),
	}
	jsonValue, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal room event: %v", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Event),
		Value: sarama.ByteEncoder(jsonValue),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Printf("Failed to publish room event: %v", err)
	}
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// EventInterceptor stamps outgoing messages with the publisher identity.
type EventInterceptor struct{}

func NewEventInterceptor() *EventInterceptor {
	return &EventInterceptor{}
}

func (i *EventInterceptor) OnSend(msg *sarama.ProducerMessage) {
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("published-by"),
		Value: []byte("ft-trans"),
	})
}
