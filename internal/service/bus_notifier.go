package service

import (
	"context"

	"lanwatch/internal/notify"
)

// BusNotifier forwards notifications to the event bus so SSE clients see the
// same transitions as the other notifiers
type BusNotifier struct {
	bus *EventBus
}

// NewBusNotifier creates a notifier publishing to bus
func NewBusNotifier(bus *EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

// Name returns "events"
func (b *BusNotifier) Name() string {
	return "events"
}

// Notify publishes device_online or device_offline
func (b *BusNotifier) Notify(_ context.Context, n notify.Notification) error {
	eventType := EventDeviceOffline
	if n.BecameOnline {
		eventType = EventDeviceOnline
	}
	b.bus.Publish(Event{Type: eventType, Payload: n.Payload()})
	return nil
}
