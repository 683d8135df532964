package service

import (
	"context"
	"strings"

	"compliance-assistant-be/internal/websocket"
	"compliance-assistant-be/pkg/events"
	"compliance-assistant-be/pkg/nats"
)

type INotifierService interface {
	Start() error
}

// notifierService bridges the NATS event bus to the websocket hub so
// dashboards see events published by any instance, not just this one.
type notifierService struct {
	subscriber *nats.Subscriber
	hub        *websocket.Hub
}

func NewNotifierService(subscriber *nats.Subscriber, hub *websocket.Hub) INotifierService {
	return &notifierService{
		subscriber: subscriber,
		hub:        hub,
	}
}

func (ns *notifierService) Start() error {
	return ns.subscriber.Subscribe("events.>", "notifier", func(ctx context.Context, event events.Event) error {
		ns.hub.Broadcast(websocket.Notification{
			Type:      strings.ToLower(event.EventType()),
			Data:      event.Payload(),
			Timestamp: event.Timestamp(),
		})
		return nil
	})
}
