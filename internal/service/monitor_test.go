package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"lanwatch/internal/adapter"
	"lanwatch/internal/domain"
	"lanwatch/internal/notify"
	"lanwatch/internal/presence"
)

type memoryStore struct {
	mu     sync.Mutex
	saved  []presence.DeviceState
	saves  int
	loaded []presence.DeviceState
}

func (s *memoryStore) SaveStates(_ context.Context, states []presence.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = states
	s.saves++
	return nil
}

func (s *memoryStore) LoadStates(context.Context) ([]presence.DeviceState, error) {
	return s.loaded, nil
}

func (s *memoryStore) DeleteDevice(context.Context, domain.MACAddress) error { return nil }

func (s *memoryStore) Close() error { return nil }

func device(t *testing.T, mac, ip string) domain.Device {
	t.Helper()
	d, err := domain.NewDevice(mac, ip, "Acme")
	require.NoError(t, err)
	return d
}

func newRegistry(t *testing.T) *presence.Registry {
	t.Helper()
	c, err := presence.NewClassifier(presence.DefaultThresholds())
	require.NoError(t, err)
	return presence.NewRegistry(c)
}

type fixture struct {
	monitor  *Monitor
	scanner  *adapter.MockScanner
	notifier *notify.MockNotifier
	events   chan Event
}

func newFixture(t *testing.T, opts ...MonitorOption) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	scanner := adapter.NewMockScanner(ctrl)
	scanner.EXPECT().Name().Return("mock").AnyTimes()

	notifier := notify.NewMockNotifier(ctrl)
	notifier.EXPECT().Name().Return("mock").AnyTimes()

	bus := NewEventBus()
	events := make(chan Event, 64)
	bus.Subscribe(events)

	dispatcher := notify.NewDispatcher(zerolog.Nop(), []notify.Notifier{notifier})
	m := NewMonitor(newRegistry(t), scanner, dispatcher, bus, zerolog.Nop(), opts...)
	return fixture{monitor: m, scanner: scanner, notifier: notifier, events: events}
}

func drain(ch chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestMonitor_FirstCycleSeedsSilently(t *testing.T) {
	f := newFixture(t)
	phone := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10")
	tv := device(t, "aa:bb:cc:dd:ee:02", "192.168.1.11")

	gomock.InOrder(
		f.scanner.EXPECT().Scan(gomock.Any()).Return([]domain.Device{phone}, nil),
		f.scanner.EXPECT().Scan(gomock.Any()).Return([]domain.Device{phone, tv}, nil),
	)
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n notify.Notification) error {
			assert.Equal(t, tv.MAC, n.Device.MAC)
			assert.True(t, n.BecameOnline)
			return nil
		})

	res, err := f.monitor.RunCycle(t.Context())
	require.NoError(t, err)
	assert.True(t, res.Seeded)
	assert.Empty(t, res.Events)

	res, err = f.monitor.RunCycle(t.Context())
	require.NoError(t, err)
	assert.False(t, res.Seeded)
	require.Len(t, res.Events, 1)

	assert.Len(t, f.monitor.Devices(), 2)
	snap, ok := f.monitor.Device(tv.MAC)
	require.True(t, ok)
	assert.True(t, snap.Online)

	status := f.monitor.Status()
	assert.Equal(t, 2, status.Cycles)
	assert.Equal(t, 2, status.Online)
	assert.Equal(t, "mock", status.Scanner)

	var completed int
	for _, ev := range drain(f.events) {
		if ev.Type == EventScanCompleted {
			completed++
		}
	}
	assert.Equal(t, 2, completed)
}

func TestMonitor_ScanFailureLeavesRegistryUntouched(t *testing.T) {
	store := &memoryStore{}
	f := newFixture(t, WithStore(store))
	phone := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10")

	boom := errors.New("arp-scan: permission denied")
	gomock.InOrder(
		f.scanner.EXPECT().Scan(gomock.Any()).Return([]domain.Device{phone}, nil),
		f.scanner.EXPECT().Scan(gomock.Any()).Return(nil, boom),
	)

	_, err := f.monitor.RunCycle(t.Context())
	require.NoError(t, err)
	before, _ := f.monitor.Device(phone.MAC)

	_, err = f.monitor.RunCycle(t.Context())
	require.ErrorIs(t, err, boom)

	after, _ := f.monitor.Device(phone.MAC)
	assert.Equal(t, before, after, "a failed scan must not push a miss")
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, boom.Error(), f.monitor.Status().LastError)

	evs := drain(f.events)
	require.NotEmpty(t, evs)
	assert.Equal(t, EventScanFailed, evs[len(evs)-1].Type)
}

func TestMonitor_RestoreSkipsSeeding(t *testing.T) {
	phone := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10")
	tv := device(t, "aa:bb:cc:dd:ee:02", "192.168.1.11")

	store := &memoryStore{loaded: []presence.DeviceState{{
		Device:   phone,
		LastSeen: time.Now().Add(-time.Minute),
		Online:   true,
		History:  presence.SampleWindowFrom(30, []bool{true, true}),
	}}}
	f := newFixture(t, WithStore(store))

	n, err := f.monitor.Restore(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.scanner.EXPECT().Scan(gomock.Any()).Return([]domain.Device{phone, tv}, nil)
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	res, err := f.monitor.RunCycle(t.Context())
	require.NoError(t, err)
	assert.False(t, res.Seeded)
	require.Len(t, res.Events, 1)
	assert.Equal(t, tv.MAC, res.Events[0].Device.MAC)

	require.Len(t, store.saved, 2)
	snap, _ := f.monitor.Device(phone.MAC)
	assert.Equal(t, "OOO", snap.Activity)
}

func TestMonitor_DeliveryFailureKeepsBelief(t *testing.T) {
	f := newFixture(t)
	phone := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10")
	tv := device(t, "aa:bb:cc:dd:ee:02", "192.168.1.11")

	gomock.InOrder(
		f.scanner.EXPECT().Scan(gomock.Any()).Return([]domain.Device{phone}, nil),
		f.scanner.EXPECT().Scan(gomock.Any()).Return([]domain.Device{phone, tv}, nil),
	)
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	_, err := f.monitor.RunCycle(t.Context())
	require.NoError(t, err)
	_, err = f.monitor.RunCycle(t.Context())
	require.NoError(t, err, "delivery failures are not cycle failures")

	snap, ok := f.monitor.Device(tv.MAC)
	require.True(t, ok)
	assert.True(t, snap.Online)
}

func TestMonitor_RunAndTrigger(t *testing.T) {
	f := newFixture(t, WithInterval(time.Hour))
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	calls := 0
	f.scanner.EXPECT().Scan(gomock.Any()).Times(2).
		DoAndReturn(func(ctx context.Context) ([]domain.Device, error) {
			calls++
			if calls == 1 {
				assert.True(t, f.monitor.TriggerScan())
				assert.False(t, f.monitor.TriggerScan(), "only one trigger can be pending")
				return nil, nil
			}
			cancel()
			return nil, ctx.Err()
		})

	done := make(chan error, 1)
	go func() { done <- f.monitor.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 2, calls)
}

func TestMonitor_Report(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, WithReport(&buf))
	f.scanner.EXPECT().Scan(gomock.Any()).Return([]domain.Device{device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10")}, nil)

	_, err := f.monitor.RunCycle(t.Context())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "Status of 1 devices\n"))
	assert.Contains(t, buf.String(), "(unknown)")
}
