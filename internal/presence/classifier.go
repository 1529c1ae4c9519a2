package presence

import (
	"errors"
	"fmt"
)

// Regime is the rule set applied to a device, chosen from its base rate
type Regime int

const (
	// RegimeSparse covers devices that sleep most of the time
	RegimeSparse Regime = iota
	// RegimeIntermittent covers devices with irregular traffic
	RegimeIntermittent
	// RegimeAlwaysOn covers devices that answer almost every scan
	RegimeAlwaysOn
)

func (r Regime) String() string {
	switch r {
	case RegimeSparse:
		return "sparse"
	case RegimeIntermittent:
		return "intermittent"
	case RegimeAlwaysOn:
		return "always_on"
	default:
		return fmt.Sprintf("regime(%d)", int(r))
	}
}

// Default tuning values
const (
	DefaultCapacity        = 30
	DefaultRecentWindow    = 10
	DefaultSparseMaxRate   = 0.3
	DefaultAlwaysOnMinRate = 0.8
	DefaultDeviationDrop   = -0.6
	DefaultRecentLowRate   = 0.3
	DefaultEpsilon         = 0.01
)

// Thresholds holds every tunable of the classifier
type Thresholds struct {
	// Capacity is the window size; shorter histories are immature
	Capacity int `json:"capacity" yaml:"capacity"`
	// RecentWindow is the sub-window used for the recent rate
	RecentWindow int `json:"recent_window" yaml:"recent_window"`
	// SparseMaxRate is the highest base rate still treated as sparse
	SparseMaxRate float64 `json:"sparse_max_rate" yaml:"sparse_max_rate"`
	// AlwaysOnMinRate is the lowest base rate treated as always-on
	AlwaysOnMinRate float64 `json:"always_on_min_rate" yaml:"always_on_min_rate"`
	// DeviationDrop is the relative drop below baseline that signals a disconnect
	DeviationDrop float64 `json:"deviation_drop" yaml:"deviation_drop"`
	// RecentLowRate is the recent rate under which a drop counts
	RecentLowRate float64 `json:"recent_low_rate" yaml:"recent_low_rate"`
	// Epsilon keeps the deviation ratio finite
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`
	// JustSeen: a sparse device seen within this many rounds is online
	JustSeen int `json:"just_seen" yaml:"just_seen"`
	// OfflineAfter: an intermittent device silent for more rounds is offline
	OfflineAfter int `json:"offline_after" yaml:"offline_after"`
}

// DefaultThresholds returns the stock tuning
func DefaultThresholds() Thresholds {
	return Thresholds{
		Capacity:        DefaultCapacity,
		RecentWindow:    DefaultRecentWindow,
		SparseMaxRate:   DefaultSparseMaxRate,
		AlwaysOnMinRate: DefaultAlwaysOnMinRate,
		DeviationDrop:   DefaultDeviationDrop,
		RecentLowRate:   DefaultRecentLowRate,
		Epsilon:         DefaultEpsilon,
		JustSeen:        DefaultRecentWindow / 2,
		OfflineAfter:    DefaultCapacity / 2,
	}
}

// WithDerivedDefaults fills JustSeen, OfflineAfter and Epsilon when unset
func (t Thresholds) WithDerivedDefaults() Thresholds {
	if t.JustSeen == 0 {
		t.JustSeen = t.RecentWindow / 2
	}
	if t.OfflineAfter == 0 {
		t.OfflineAfter = t.Capacity / 2
	}
	if t.Epsilon == 0 {
		t.Epsilon = DefaultEpsilon
	}
	return t
}

// Validate rejects tunings that would break the regime structure
func (t Thresholds) Validate() error {
	var errs []error
	if t.Capacity < 2 {
		errs = append(errs, fmt.Errorf("capacity %d must be at least 2", t.Capacity))
	}
	if t.RecentWindow < 1 || t.RecentWindow >= t.Capacity {
		errs = append(errs, fmt.Errorf("recent_window %d must be in [1, capacity)", t.RecentWindow))
	}
	if t.SparseMaxRate < 0 || t.AlwaysOnMinRate > 1 || t.SparseMaxRate >= t.AlwaysOnMinRate {
		errs = append(errs, fmt.Errorf("rates must satisfy 0 <= sparse_max_rate (%v) < always_on_min_rate (%v) <= 1",
			t.SparseMaxRate, t.AlwaysOnMinRate))
	}
	if t.DeviationDrop >= 0 {
		errs = append(errs, fmt.Errorf("deviation_drop %v must be negative", t.DeviationDrop))
	}
	if t.RecentLowRate < 0 || t.RecentLowRate > 1 {
		errs = append(errs, fmt.Errorf("recent_low_rate %v must be in [0, 1]", t.RecentLowRate))
	}
	if t.Epsilon <= 0 {
		errs = append(errs, fmt.Errorf("epsilon %v must be positive", t.Epsilon))
	}
	if t.JustSeen < 1 || t.JustSeen > t.RecentWindow {
		errs = append(errs, fmt.Errorf("just_seen %d must be in [1, recent_window]", t.JustSeen))
	}
	if t.OfflineAfter < 1 || t.OfflineAfter >= t.Capacity {
		errs = append(errs, fmt.Errorf("offline_after %d must be in [1, capacity)", t.OfflineAfter))
	}
	return errors.Join(errs...)
}

// RegimeFor selects the rule set for a base rate
func (t Thresholds) RegimeFor(baseRate float64) Regime {
	switch {
	case baseRate <= t.SparseMaxRate:
		return RegimeSparse
	case baseRate >= t.AlwaysOnMinRate:
		return RegimeAlwaysOn
	default:
		return RegimeIntermittent
	}
}

// Classifier turns a sample history into an online/offline belief.
// It is stateless; the belief it returns is the only state it affects.
type Classifier struct {
	t Thresholds
}

// NewClassifier validates the thresholds and returns a classifier
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	return &Classifier{t: t}, nil
}

// Thresholds returns the tuning in use
func (c *Classifier) Thresholds() Thresholds {
	return c.t
}

// Classify returns the new belief (true = online) for a history and the prior belief.
// Immature histories never change the belief.
func (c *Classifier) Classify(history *SampleWindow, prior bool) bool {
	if history.Len() < c.t.Capacity {
		return prior
	}

	lastPing := history.IndexOfLastTrue()
	baseRate, _ := history.BaseRate()

	switch c.t.RegimeFor(baseRate) {
	case RegimeSparse:
		return c.classifySparse(lastPing, history.Cap(), prior)
	case RegimeIntermittent:
		return lastPing <= c.t.OfflineAfter
	case RegimeAlwaysOn:
		recentRate, _ := history.RecentRate(c.t.RecentWindow)
		return c.classifyAlwaysOn(lastPing, baseRate, recentRate)
	}
	return prior
}

// classifySparse only flips on total silence or a fresh ping; anything in
// between keeps the prior belief.
func (c *Classifier) classifySparse(lastPing, capacity int, prior bool) bool {
	if lastPing >= capacity {
		return false
	}
	if lastPing < c.t.JustSeen {
		return true
	}
	return prior
}

func (c *Classifier) classifyAlwaysOn(lastPing int, baseRate, recentRate float64) bool {
	deviation := (recentRate - baseRate) / (baseRate + c.t.Epsilon)
	dropped := deviation < c.t.DeviationDrop && recentRate < c.t.RecentLowRate
	if dropped || lastPing > c.t.RecentWindow {
		return false
	}
	return true
}
