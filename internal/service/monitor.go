package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/adapter"
	"lanwatch/internal/domain"
	"lanwatch/internal/notify"
	"lanwatch/internal/presence"
	"lanwatch/internal/repository"
)

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithStore persists state after every cycle
func WithStore(store repository.StateStore) MonitorOption {
	return func(m *Monitor) {
		m.store = store
	}
}

// WithInterval sets the time between scans
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithReport writes the status table to w after every cycle
func WithReport(w io.Writer) MonitorOption {
	return func(m *Monitor) {
		m.report = w
	}
}

// CycleResult describes one completed scan cycle
type CycleResult struct {
	Observed int
	Events   []presence.Event
	Seeded   bool
}

// Status summarizes the monitor for the API
type Status struct {
	Cycles    int       `json:"cycles"`
	Devices   int       `json:"devices"`
	Online    int       `json:"online"`
	Rejected  int       `json:"rejected"`
	Scanner   string    `json:"scanner"`
	LastScan  time.Time `json:"last_scan,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Monitor drives the scan, reconcile, notify loop and owns the registry
type Monitor struct {
	scanner    adapter.Scanner
	dispatcher *notify.Dispatcher
	bus        *EventBus
	store      repository.StateStore
	interval   time.Duration
	report     io.Writer
	log        zerolog.Logger

	// cycleMu serializes cycles; mu guards registry reads against a running cycle
	cycleMu  sync.Mutex
	mu       sync.RWMutex
	registry *presence.Registry
	seeded   bool
	cycles   int
	lastScan time.Time
	lastErr  error

	trigger chan struct{}
}

// NewMonitor creates a monitor
func NewMonitor(registry *presence.Registry, scanner adapter.Scanner, dispatcher *notify.Dispatcher, bus *EventBus, log zerolog.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		registry:   registry,
		scanner:    scanner,
		dispatcher: dispatcher,
		bus:        bus,
		interval:   30 * time.Second,
		log:        log.With().Str("component", "monitor").Logger(),
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads persisted state into the registry. A non-empty restore skips
// the silent seeding of the first scan.
func (m *Monitor) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}

	states, loadErr := m.store.LoadStates(ctx)
	if loadErr != nil && len(states) == 0 {
		return 0, fmt.Errorf("load state: %w", loadErr)
	}

	m.mu.Lock()
	n := m.registry.Restore(states)
	if n > 0 {
		m.seeded = true
	}
	m.mu.Unlock()

	if loadErr != nil {
		m.log.Warn().Err(loadErr).Msg("some stored devices could not be restored")
	}
	m.log.Info().Int("devices", n).Msg("restored device state")
	return n, nil
}

// RunCycle performs one scan and applies it. A scan error leaves the registry
// untouched.
func (m *Monitor) RunCycle(ctx context.Context) (CycleResult, error) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	devices, err := m.scanner.Scan(ctx)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.bus.Publish(Event{Type: EventScanFailed, Payload: map[string]string{"error": err.Error()}})
		return CycleResult{}, fmt.Errorf("scan with %s: %w", m.scanner.Name(), err)
	}

	result := CycleResult{Observed: len(devices)}

	m.mu.Lock()
	if !m.seeded {
		added := m.registry.Seed(devices)
		m.seeded = true
		result.Seeded = true
		m.log.Info().Int("devices", added).Msg("seeded registry from first scan")
	} else {
		result.Events = m.registry.Reconcile(devices)
	}
	m.cycles++
	m.lastScan = time.Now()
	m.lastErr = nil
	cycle := m.cycles
	var states []presence.DeviceState
	if m.store != nil {
		states = m.registry.States()
	}
	snapshots := m.registry.Snapshots()
	m.mu.Unlock()

	// beliefs are committed; nothing below may roll them back
	if m.store != nil {
		if err := m.store.SaveStates(ctx, states); err != nil {
			m.log.Error().Err(err).Msg("failed to persist device state")
		}
	}

	for _, ev := range result.Events {
		m.log.Info().
			Str("mac", ev.Device.MAC.String()).
			Str("ip", ev.Device.IP.String()).
			Bool("online", ev.BecameOnline).
			Msg("presence changed")
	}

	if err := m.dispatcher.Dispatch(ctx, result.Events); err != nil {
		m.log.Warn().Err(err).Int("events", len(result.Events)).Msg("some notifications were not delivered")
	}

	online := 0
	for _, s := range snapshots {
		if s.Online {
			online++
		}
	}
	m.bus.Publish(Event{Type: EventScanCompleted, Payload: ScanSummary{
		Cycle:    cycle,
		Observed: result.Observed,
		Devices:  len(snapshots),
		Online:   online,
		Changes:  len(result.Events),
		Seeded:   result.Seeded,
	}})

	if m.report != nil {
		if err := FormatStatus(m.report, snapshots, m.dispatcher.Names()); err != nil {
			m.log.Warn().Err(err).Msg("failed to write status report")
		}
	}

	return result, nil
}

// Run scans immediately, then every interval or when triggered, until ctx ends
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().Dur("interval", m.interval).Str("scanner", m.scanner.Name()).Msg("monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
			m.log.Error().Err(err).Msg("scan cycle failed")
		}

		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		case <-m.trigger:
			ticker.Reset(m.interval)
		}
	}
}

// TriggerScan asks Run for an early cycle. It returns false when one is
// already pending.
func (m *Monitor) TriggerScan() bool {
	select {
	case m.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Devices returns snapshots of every known device
func (m *Monitor) Devices() []presence.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Snapshots()
}

// Device returns the snapshot for one MAC
func (m *Monitor) Device(mac domain.MACAddress) (presence.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Get(mac)
}

// Names returns the current MAC to name table
func (m *Monitor) Names() map[domain.MACAddress]string {
	return m.dispatcher.Names()
}

// Status returns counters for the API
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Cycles:   m.cycles,
		Devices:  m.registry.Len(),
		Rejected: m.registry.Rejected(),
		Scanner:  m.scanner.Name(),
		LastScan: m.lastScan,
	}
	for _, snap := range m.registry.Snapshots() {
		if snap.Online {
			s.Online++
		}
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}
