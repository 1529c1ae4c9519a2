package repository

import (
	"context"

	"lanwatch/internal/domain"
	"lanwatch/internal/presence"
)

// StateStore persists device presence state between daemon restarts
type StateStore interface {
	// SaveStates upserts every given state in one transaction
	SaveStates(ctx context.Context, states []presence.DeviceState) error

	// LoadStates returns every stored state
	LoadStates(ctx context.Context) ([]presence.DeviceState, error)

	// DeleteDevice forgets one device
	DeleteDevice(ctx context.Context, mac domain.MACAddress) error

	// Close releases resources
	Close() error
}
