package codec

import (
	"io"
	"time"

	"lanwatch/internal/domain"
	"lanwatch/internal/presence"
)

// Exporter writes a device inventory in one format
type Exporter interface {
	Export(inv Inventory, w io.Writer) error
	Format() string
}

// Inventory is the exported view of the registry
type Inventory struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Devices     []Record  `json:"devices" yaml:"devices"`
}

// Record is one device in an inventory
type Record struct {
	MAC      string    `json:"mac" yaml:"mac"`
	IP       string    `json:"ip" yaml:"ip"`
	Vendor   string    `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Online   bool      `json:"online" yaml:"online"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen"`
	Activity string    `json:"activity" yaml:"activity"`
	BaseRate float64   `json:"base_rate" yaml:"base_rate"`
}

// NewInventory builds an inventory from registry snapshots, keeping their order
func NewInventory(snapshots []presence.Snapshot, names map[domain.MACAddress]string, now time.Time) Inventory {
	inv := Inventory{GeneratedAt: now, Devices: make([]Record, 0, len(snapshots))}
	for _, s := range snapshots {
		inv.Devices = append(inv.Devices, Record{
			MAC:      s.Device.MAC.String(),
			IP:       s.Device.IP.String(),
			Vendor:   s.Device.Vendor,
			Name:     names[s.Device.MAC],
			Online:   s.Online,
			LastSeen: s.LastSeen,
			Activity: s.Activity,
			BaseRate: s.BaseRate,
		})
	}
	return inv
}

// ForFormat returns the exporter for "json" or "yaml", nil otherwise
func ForFormat(format string) Exporter {
	switch format {
	case "json":
		return NewJSONCodec()
	case "yaml", "yml":
		return NewYAMLCodec()
	default:
		return nil
	}
}
