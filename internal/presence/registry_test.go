package presence

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	c, err := NewClassifier(DefaultThresholds())
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return NewRegistry(c, WithClock(clock.Now)), clock
}

func device(t *testing.T, mac, ip, vendor string) domain.Device {
	t.Helper()
	d, err := domain.NewDevice(mac, ip, vendor)
	require.NoError(t, err)
	return d
}

func online(t *testing.T, r *Registry, mac domain.MACAddress) bool {
	t.Helper()
	s, ok := r.Get(mac)
	require.True(t, ok, "device %s not in registry", mac)
	return s.Online
}

func TestRegistryNewDeviceReportedImmediately(t *testing.T) {
	r, _ := newTestRegistry(t)
	phone := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "Apple")

	events := r.Reconcile([]domain.Device{phone})
	require.Len(t, events, 1)
	assert.Equal(t, phone, events[0].Device)
	assert.True(t, events[0].BecameOnline)

	s, ok := r.Get(phone.MAC)
	require.True(t, ok)
	assert.True(t, s.Online)
	assert.Equal(t, 1, s.Samples)
	assert.Equal(t, "O", s.Activity)
}

func TestRegistrySteadyStateIsQuiet(t *testing.T) {
	r, _ := newTestRegistry(t)
	observed := []domain.Device{
		device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "Apple"),
		device(t, "aa:bb:cc:dd:ee:02", "192.168.1.11", "Espressif"),
	}

	first := r.Reconcile(observed)
	assert.Len(t, first, 2)

	for round := 0; round < 3*DefaultCapacity; round++ {
		assert.Empty(t, r.Reconcile(observed), "round %d", round)
	}
}

func TestRegistryUpdatesObservedAndAgesMissing(t *testing.T) {
	r, clock := newTestRegistry(t)
	a := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "Apple")
	b := device(t, "aa:bb:cc:dd:ee:02", "192.168.1.11", "")

	r.Reconcile([]domain.Device{a, b})
	firstSeen := clock.Now()

	clock.Advance(time.Minute)
	moved := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.99", "Apple, Inc.")
	r.Reconcile([]domain.Device{moved})

	sa, _ := r.Get(a.MAC)
	assert.Equal(t, netip.MustParseAddr("192.168.1.99"), sa.Device.IP)
	assert.Equal(t, "Apple, Inc.", sa.Device.Vendor)
	assert.Equal(t, clock.Now(), sa.LastSeen)
	assert.Equal(t, "OO", sa.Activity)

	sb, _ := r.Get(b.MAC)
	assert.Equal(t, firstSeen, sb.LastSeen)
	assert.Equal(t, "-O", sb.Activity)
}

func TestRegistryEmptyObservation(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "")
	r.Reconcile([]domain.Device{a})

	events := r.Reconcile(nil)
	assert.Empty(t, events)
	s, _ := r.Get(a.MAC)
	assert.Equal(t, "-O", s.Activity)
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySkipsInvalidRecords(t *testing.T) {
	r, _ := newTestRegistry(t)
	good := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "")
	bad := []domain.Device{
		{},
		{MAC: "AA:BB", IP: netip.MustParseAddr("10.0.0.1")},
		{MAC: "aa:bb:cc:dd:ee:03", IP: netip.MustParseAddr("fe80::1")},
	}

	events := r.Reconcile(append(bad, good))
	require.Len(t, events, 1)
	assert.Equal(t, good.MAC, events[0].Device.MAC)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 3, r.Rejected())
}

func TestRegistryDuplicateObservationCountsOnce(t *testing.T) {
	r, _ := newTestRegistry(t)
	first := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "")
	second := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.20", "")

	events := r.Reconcile([]domain.Device{first, second})
	require.Len(t, events, 1)
	assert.Equal(t, second, events[0].Device)

	s, _ := r.Get(first.MAC)
	assert.Equal(t, 1, s.Samples)
	assert.Equal(t, second.IP, s.Device.IP)
}

func TestRegistryAlwaysOnDeviceDisconnects(t *testing.T) {
	r, _ := newTestRegistry(t)
	tv := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "LG")
	present := []domain.Device{tv}

	for i := 0; i < DefaultCapacity; i++ {
		r.Reconcile(present)
	}
	require.True(t, online(t, r, tv.MAC))

	for i := 0; i < 3; i++ {
		assert.Empty(t, r.Reconcile(nil))
		assert.True(t, online(t, r, tv.MAC), "must stay online after %d missed rounds", i+1)
	}

	var offline []Event
	for i := 0; i < DefaultCapacity; i++ {
		offline = append(offline, r.Reconcile(nil)...)
	}
	require.Len(t, offline, 1)
	assert.False(t, offline[0].BecameOnline)
	assert.False(t, online(t, r, tv.MAC))

	for i := 0; i < 2*DefaultCapacity; i++ {
		assert.Empty(t, r.Reconcile(nil), "continued silence must not flip back")
	}
	assert.False(t, online(t, r, tv.MAC))

	events := r.Reconcile(present)
	require.Len(t, events, 1)
	assert.True(t, events[0].BecameOnline)
}

func TestRegistryAlwaysOnFlipRound(t *testing.T) {
	r, _ := newTestRegistry(t)
	tv := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "")
	for i := 0; i < DefaultCapacity; i++ {
		r.Reconcile([]domain.Device{tv})
	}

	// intermittent rule fires once the silence exceeds OfflineAfter
	offlineAfter := DefaultThresholds().OfflineAfter
	for missed := 1; missed <= offlineAfter; missed++ {
		require.Empty(t, r.Reconcile(nil), "missed %d", missed)
	}
	events := r.Reconcile(nil)
	require.Len(t, events, 1)
	assert.False(t, events[0].BecameOnline)
}

func TestRegistrySparseDeviceGoesOfflineAfterFullWindow(t *testing.T) {
	r, _ := newTestRegistry(t)
	sensor := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.50", "Espressif")

	// seen one round in ten
	var lastSeenRound int
	for round := 0; round < 60; round++ {
		var observed []domain.Device
		if round%10 == 0 {
			observed = []domain.Device{sensor}
			lastSeenRound = round
		}
		events := r.Reconcile(observed)
		if round == 0 {
			require.Len(t, events, 1)
			continue
		}
		require.Empty(t, events, "round %d", round)
	}
	require.Equal(t, 50, lastSeenRound)

	// rounds 60..79 already missed 9; count total silence from round 51
	silent := 59 - lastSeenRound
	for silent < DefaultCapacity-1 {
		require.Empty(t, r.Reconcile(nil), "silent %d", silent+1)
		silent++
		assert.True(t, online(t, r, sensor.MAC), "silent %d", silent)
	}

	events := r.Reconcile(nil)
	require.Len(t, events, 1)
	assert.False(t, events[0].BecameOnline)
}

func TestRegistrySparseDeviceSingleMissDoesNotFlip(t *testing.T) {
	r, _ := newTestRegistry(t)
	sensor := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.50", "")

	for round := 0; round < DefaultCapacity; round++ {
		var observed []domain.Device
		if round%5 == 0 || round == DefaultCapacity-1 {
			observed = []domain.Device{sensor}
		}
		r.Reconcile(observed)
	}
	require.True(t, online(t, r, sensor.MAC))

	assert.Empty(t, r.Reconcile(nil))
	assert.True(t, online(t, r, sensor.MAC))
}

func TestRegistrySeed(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "")
	b := device(t, "aa:bb:cc:dd:ee:02", "192.168.1.11", "")

	added := r.Seed([]domain.Device{a})
	assert.Equal(t, 1, added)
	assert.True(t, online(t, r, a.MAC))

	events := r.Reconcile([]domain.Device{a, b})
	require.Len(t, events, 1)
	assert.Equal(t, b.MAC, events[0].Device.MAC)
}

func TestRegistryRestore(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "")
	lastSeen := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	n := r.Restore([]DeviceState{
		{Device: a, LastSeen: lastSeen, Online: false, History: SampleWindowFrom(50, ParseActivity("--O"))},
		{Device: domain.Device{MAC: "bogus"}},
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Rejected())

	s, ok := r.Get(a.MAC)
	require.True(t, ok)
	assert.False(t, s.Online)
	assert.Equal(t, lastSeen, s.LastSeen)
	assert.Equal(t, "--O", s.Activity)

	states := r.States()
	require.Len(t, states, 1)
	assert.Equal(t, DefaultCapacity, states[0].History.Cap())

	// a restored device is known, so its return is a belief question, not a new device
	events := r.Reconcile([]domain.Device{a})
	assert.Empty(t, events)
}

func TestRegistrySnapshotsSorted(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Reconcile([]domain.Device{
		device(t, "aa:bb:cc:dd:ee:03", "192.168.1.3", "Sonos"),
		device(t, "aa:bb:cc:dd:ee:02", "192.168.1.2", "Apple"),
		device(t, "aa:bb:cc:dd:ee:01", "192.168.1.1", "Sonos"),
	})

	snaps := r.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, domain.MACAddress("aa:bb:cc:dd:ee:02"), snaps[0].Device.MAC)
	assert.Equal(t, domain.MACAddress("aa:bb:cc:dd:ee:01"), snaps[1].Device.MAC)
	assert.Equal(t, domain.MACAddress("aa:bb:cc:dd:ee:03"), snaps[2].Device.MAC)
}

func TestRegistryStatesAreDetached(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := device(t, "aa:bb:cc:dd:ee:01", "192.168.1.10", "")
	r.Reconcile([]domain.Device{a})

	states := r.States()
	states[0].History.Push(false)

	s, _ := r.Get(a.MAC)
	assert.Equal(t, 1, s.Samples)
}
