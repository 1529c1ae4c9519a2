package notify

import (
	"context"
	"fmt"
	"time"

	"lanwatch/internal/domain"
)

//go:generate mockgen -destination=mock_notifier.go -package=notify lanwatch/internal/notify Notifier

// Notifier delivers a single notification over one transport
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Notification is one belief flip ready for delivery
type Notification struct {
	ID           string        `json:"id"`
	Device       domain.Device `json:"device"`
	Name         string        `json:"name,omitempty"`
	Known        bool          `json:"known"`
	BecameOnline bool          `json:"online"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Label is the configured name, or the MAC address for unnamed devices
func (n Notification) Label() string {
	if n.Known {
		return n.Name
	}
	return n.Device.MAC.String()
}

// Status returns "connected" or "disconnected"
func (n Notification) Status() string {
	if n.BecameOnline {
		return "connected"
	}
	return "disconnected"
}

// Summary is the one-line headline
func (n Notification) Summary() string {
	return fmt.Sprintf("Device %s %s", n.Label(), n.Status())
}

// Body is the full message text
func (n Notification) Body() string {
	return fmt.Sprintf("Device %s with IP %s and MAC %s is %s",
		n.Label(), n.Device.IP, n.Device.MAC, n.Status())
}

// Payload is the JSON document sent by the machine-facing notifiers
type Payload struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Online    bool      `json:"online"`
	MAC       string    `json:"mac"`
	IP        string    `json:"ip"`
	Vendor    string    `json:"vendor,omitempty"`
	Name      string    `json:"name,omitempty"`
	Known     bool      `json:"known"`
	Summary   string    `json:"summary"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Payload flattens the notification for JSON transports
func (n Notification) Payload() Payload {
	return Payload{
		ID:        n.ID,
		Event:     n.Status(),
		Online:    n.BecameOnline,
		MAC:       n.Device.MAC.String(),
		IP:        n.Device.IP.String(),
		Vendor:    n.Device.Vendor,
		Name:      n.Name,
		Known:     n.Known,
		Summary:   n.Summary(),
		Body:      n.Body(),
		Timestamp: n.Timestamp,
	}
}
