package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"github.com/hakkacheyassin/ft-trans/services"
)

// RoomEventHandler forwards room events from sibling instances into the local
// sink (normally the websocket hub). Events published by this instance are
// skipped; the local hub already saw them directly.
type RoomEventHandler struct {
	local      services.EventSink
	skipOrigin string
}

func NewRoomEventHandler(local services.EventSink, skipOrigin string) *RoomEventHandler {
	return &RoomEventHandler{local: local, skipOrigin: skipOrigin}
}

func (h *RoomEventHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event RoomEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		log.Printf("Failed to unmarshal room event: %v", err)
		return err
	}
	if event.Origin == h.skipOrigin {
		return nil
	}
	h.local.NotifyRoomsChanged()
	return nil
}

type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       *RoomEventHandler
}

func NewConsumer(brokers []string, groupID string, topics []string,
	config *sarama.Config, handler *RoomEventHandler) (*Consumer, error) {
	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		consumerGroup: consumerGroup,
		topics:        topics,
		handler:       handler,
	}, nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		err := c.handler.Handle(session.Context(), message)
		if err == nil {
			session.MarkMessage(message, "")
		} else {
			log.Printf("Failed to process room event: %v", err)
		}
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.consumerGroup.Consume(ctx, c.topics, c); err != nil {
			if err == sarama.ErrClosedConsumerGroup {
				return nil
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumerGroup.Close()
}
