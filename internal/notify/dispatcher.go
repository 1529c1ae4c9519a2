package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lanwatch/internal/domain"
	"lanwatch/internal/presence"
)

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithOnlyKnown drops notifications for devices without a configured name
func WithOnlyKnown(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.onlyKnown = enabled
	}
}

// WithConcurrency bounds how many notifiers deliver at once
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithDeliveryTimeout bounds each Notify call
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithNames sets the initial MAC to name table
func WithNames(names map[domain.MACAddress]string) DispatcherOption {
	return func(d *Dispatcher) {
		d.names = maps.Clone(names)
	}
}

// WithDispatchClock overrides the notification timestamp source
func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher fans presence events out to notifiers.
// Each notifier receives a batch in event order; different notifiers run in
// parallel.
type Dispatcher struct {
	mu        sync.RWMutex
	names     map[domain.MACAddress]string
	notifiers []Notifier

	onlyKnown   bool
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given notifiers
func NewDispatcher(log zerolog.Logger, notifiers []Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		names:       make(map[domain.MACAddress]string),
		notifiers:   notifiers,
		concurrency: 4,
		timeout:     10 * time.Second,
		now:         time.Now,
		log:         log.With().Str("component", "dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddNotifier registers another delivery target
func (d *Dispatcher) AddNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
}

// Notifiers returns the registered notifier names
func (d *Dispatcher) Notifiers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// SetNames replaces the MAC to name table, e.g. after a config reload
func (d *Dispatcher) SetNames(names map[domain.MACAddress]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = maps.Clone(names)
	if d.names == nil {
		d.names = make(map[domain.MACAddress]string)
	}
}

// Names returns a copy of the MAC to name table
func (d *Dispatcher) Names() map[domain.MACAddress]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.names)
}

// Notification builds the notification for one event
func (d *Dispatcher) Notification(ev presence.Event) Notification {
	d.mu.RLock()
	name, known := d.names[ev.Device.MAC]
	d.mu.RUnlock()

	return Notification{
		ID:           uuid.NewString(),
		Device:       ev.Device,
		Name:         name,
		Known:        known,
		BecameOnline: ev.BecameOnline,
		Timestamp:    d.now(),
	}
}

// Dispatch delivers the events to every notifier. Failures are logged and
// returned joined; they never stop delivery to other notifiers.
func (d *Dispatcher) Dispatch(ctx context.Context, events []presence.Event) error {
	batch := make([]Notification, 0, len(events))
	for _, ev := range events {
		n := d.Notification(ev)
		if d.onlyKnown && !n.Known {
			d.log.Debug().Str("mac", n.Device.MAC.String()).Str("status", n.Status()).Msg("skipping unknown device")
			continue
		}
		batch = append(batch, n)
	}
	if len(batch) == 0 {
		return nil
	}

	d.mu.RLock()
	notifiers := append([]Notifier(nil), d.notifiers...)
	d.mu.RUnlock()

	var (
		errMu sync.Mutex
		errs  []error
	)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, notifier := range notifiers {
		g.Go(func() error {
			for _, n := range batch {
				if err := d.deliver(ctx, notifier, n); err != nil {
					d.log.Warn().Err(err).
						Str("notifier", notifier.Name()).
						Str("mac", n.Device.MAC.String()).
						Msg("notification delivery failed")
					errMu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
					errMu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, notifier Notifier, n Notification) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return notifier.Notify(ctx, n)
}

// Close releases notifiers that hold connections
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, n := range d.notifiers {
		if c, ok := n.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", n.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
