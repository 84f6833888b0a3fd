package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/pericarp/es/pkg/domain"
)

// busTopic is the single broadcast topic every WatermillEventBus instance
// publishes to and every subscriber reads from. Fan-out to many interested
// handlers happens in the eventing package's subscribe loop, not at the
// transport layer, so one topic is enough.
const busTopic = "events"

// WatermillEventBus implements eventing.EventBus over a Watermill pub/sub.
// The zero-value-friendly gochannel.GoChannel is the in-process transport;
// swapping in a Kafka or NATS pub/sub only changes the constructor.
type WatermillEventBus struct {
	pubSub message.PubSub
	logger watermill.LoggerAdapter
}

// NewWatermillEventBus wraps an in-process, non-persistent gochannel
// pub/sub. logger may be nil, in which case Watermill's NopLogger is used.
func NewWatermillEventBus(logger watermill.LoggerAdapter) *WatermillEventBus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
			Persistent:          false,
		},
		logger,
	)
	return &WatermillEventBus{pubSub: pubSub, logger: logger}
}

// NewWatermillEventBusWithPubSub wraps an arbitrary Watermill pub/sub
// implementation, for production transports (Kafka, NATS, ...).
func NewWatermillEventBusWithPubSub(pubSub message.PubSub, logger watermill.LoggerAdapter) *WatermillEventBus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &WatermillEventBus{pubSub: pubSub, logger: logger}
}

// Publish marshals event and publishes it to the shared topic.
func (b *WatermillEventBus) Publish(ctx context.Context, event domain.SerializedEvent) error {
	msg, err := toWatermillMessage(event)
	if err != nil {
		return domain.NewSerializationError(err)
	}
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(busTopic, msg); err != nil {
		return domain.NewEventBusError(fmt.Sprintf("publish event %s", event.EventID), err)
	}
	return nil
}

// PublishBatch publishes every event individually; gochannel (and most
// Watermill pub/subs) have no batch API, so this is what the eventing
// engine's per-event fallback path would do anyway, just inlined.
func (b *WatermillEventBus) PublishBatch(ctx context.Context, events []domain.SerializedEvent) error {
	for _, event := range events {
		if err := b.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe returns a channel of every event published after the call,
// decoding each Watermill message back into a SerializedEvent and Acking it
// once decoded. A decode failure Nacks the message and is dropped rather
// than propagated, since there is no caller to return the error to.
func (b *WatermillEventBus) Subscribe(ctx context.Context) (<-chan domain.SerializedEvent, error) {
	messages, err := b.pubSub.Subscribe(ctx, busTopic)
	if err != nil {
		return nil, domain.NewEventBusError(fmt.Sprintf("subscribe to %s", busTopic), err)
	}

	out := make(chan domain.SerializedEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				event, err := fromWatermillMessage(msg)
				if err != nil {
					b.logger.Error("failed to decode event message", err, nil)
					msg.Nack()
					continue
				}
				msg.Ack()
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func toWatermillMessage(event domain.SerializedEvent) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}
	msg := message.NewMessage(event.EventID, payload)
	msg.Metadata.Set("event_type", event.EventType)
	msg.Metadata.Set("aggregate_id", event.AggregateID)
	return msg, nil
}

func fromWatermillMessage(msg *message.Message) (domain.SerializedEvent, error) {
	var event domain.SerializedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return domain.SerializedEvent{}, fmt.Errorf("unmarshal event message %s: %w", msg.UUID, err)
	}
	return event, nil
}
