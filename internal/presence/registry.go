package presence

import (
	"sort"
	"time"

	"lanwatch/internal/domain"
)

// DeviceState is everything the registry knows about one device
type DeviceState struct {
	Device   domain.Device
	LastSeen time.Time
	Online   bool
	History  *SampleWindow
}

// Snapshot is a detached copy of a DeviceState, safe to share across goroutines
type Snapshot struct {
	Device   domain.Device `json:"device" yaml:"device"`
	LastSeen time.Time     `json:"last_seen" yaml:"last_seen"`
	Online   bool          `json:"online" yaml:"online"`
	Activity string        `json:"activity" yaml:"activity"`
	Samples  int           `json:"samples" yaml:"samples"`
	BaseRate float64       `json:"base_rate" yaml:"base_rate"`
}

// Event reports a belief flip, or the first sighting of a device
type Event struct {
	Device       domain.Device
	BecameOnline bool
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides the time source used for LastSeen
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry maps device identifiers to their presence state.
// It is not safe for concurrent use; the owner serializes access.
type Registry struct {
	classifier *Classifier
	states     map[domain.MACAddress]*DeviceState
	order      []domain.MACAddress
	now        func() time.Time
	rejected   int
}

// NewRegistry creates an empty registry driven by classifier
func NewRegistry(classifier *Classifier, opts ...Option) *Registry {
	r := &Registry{
		classifier: classifier,
		states:     make(map[domain.MACAddress]*DeviceState),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile folds one scan round into the registry and returns the resulting events.
//
// Observed devices get a true sample (new ones are created online and reported
// immediately), every other known device gets a false sample, then every device
// is classified and a flip produces one event. Invalid records are skipped.
func (r *Registry) Reconcile(observed []domain.Device) []Event {
	var events []Event
	seen := r.dedupe(observed)
	now := r.now()

	for _, mac := range seen.order {
		device := seen.devices[mac]
		if state, ok := r.states[mac]; ok {
			state.Device = device
			state.LastSeen = now
			state.History.Push(true)
			continue
		}

		r.insert(device, now)
		events = append(events, Event{Device: device, BecameOnline: true})
	}

	for _, mac := range r.order {
		state := r.states[mac]
		if _, ok := seen.devices[mac]; !ok {
			state.History.Push(false)
		}

		belief := r.classifier.Classify(state.History, state.Online)
		if belief != state.Online {
			state.Online = belief
			events = append(events, Event{Device: state.Device, BecameOnline: belief})
		}
	}

	return events
}

// Seed registers devices present at startup as online without reporting them.
// Devices already known are treated as a normal sighting.
func (r *Registry) Seed(observed []domain.Device) int {
	seen := r.dedupe(observed)
	now := r.now()
	added := 0
	for _, mac := range seen.order {
		device := seen.devices[mac]
		if state, ok := r.states[mac]; ok {
			state.Device = device
			state.LastSeen = now
			state.History.Push(true)
			continue
		}
		r.insert(device, now)
		added++
	}
	return added
}

// Restore loads previously persisted states, replacing any with the same MAC.
// Histories are resized to the classifier capacity.
func (r *Registry) Restore(states []DeviceState) int {
	restored := 0
	capacity := r.classifier.Thresholds().Capacity
	for _, s := range states {
		if err := s.Device.Validate(); err != nil {
			r.rejected++
			continue
		}
		var samples []bool
		if s.History != nil {
			samples = s.History.Samples()
		}
		state := &DeviceState{
			Device:   s.Device,
			LastSeen: s.LastSeen,
			Online:   s.Online,
			History:  SampleWindowFrom(capacity, samples),
		}
		if _, ok := r.states[s.Device.MAC]; !ok {
			r.order = append(r.order, s.Device.MAC)
		}
		r.states[s.Device.MAC] = state
		restored++
	}
	return restored
}

// Get returns a snapshot of one device
func (r *Registry) Get(mac domain.MACAddress) (Snapshot, bool) {
	state, ok := r.states[mac]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(state), true
}

// Len returns the number of known devices
func (r *Registry) Len() int {
	return len(r.states)
}

// Rejected returns how many invalid records have been skipped so far
func (r *Registry) Rejected() int {
	return r.rejected
}

// States returns deep copies of every state in insertion order
func (r *Registry) States() []DeviceState {
	out := make([]DeviceState, 0, len(r.order))
	for _, mac := range r.order {
		s := r.states[mac]
		out = append(out, DeviceState{
			Device:   s.Device,
			LastSeen: s.LastSeen,
			Online:   s.Online,
			History:  s.History.Clone(),
		})
	}
	return out
}

// Snapshots returns every device sorted by vendor label, then MAC
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.states))
	for _, mac := range r.order {
		out = append(out, snapshotOf(r.states[mac]))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Device.Vendor != out[j].Device.Vendor {
			return out[i].Device.Vendor < out[j].Device.Vendor
		}
		return out[i].Device.MAC < out[j].Device.MAC
	})
	return out
}

func (r *Registry) insert(device domain.Device, now time.Time) {
	history := NewSampleWindow(r.classifier.Thresholds().Capacity)
	history.Push(true)
	r.states[device.MAC] = &DeviceState{
		Device:   device,
		LastSeen: now,
		Online:   true,
		History:  history,
	}
	r.order = append(r.order, device.MAC)
}

type observation struct {
	devices map[domain.MACAddress]domain.Device
	order   []domain.MACAddress
}

// dedupe drops invalid records and collapses repeated MACs (last record wins)
func (r *Registry) dedupe(observed []domain.Device) observation {
	obs := observation{devices: make(map[domain.MACAddress]domain.Device, len(observed))}
	for _, d := range observed {
		if err := d.Validate(); err != nil {
			r.rejected++
			continue
		}
		if _, dup := obs.devices[d.MAC]; !dup {
			obs.order = append(obs.order, d.MAC)
		}
		obs.devices[d.MAC] = d
	}
	return obs
}

func snapshotOf(s *DeviceState) Snapshot {
	rate, _ := s.History.BaseRate()
	return Snapshot{
		Device:   s.Device,
		LastSeen: s.LastSeen,
		Online:   s.Online,
		Activity: s.History.String(),
		Samples:  s.History.Len(),
		BaseRate: rate,
	}
}
