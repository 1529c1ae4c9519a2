package codec

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"lanwatch/internal/domain"
	"lanwatch/internal/presence"
)

func testInventory(t *testing.T) Inventory {
	t.Helper()
	dev, err := domain.NewDevice("aa:bb:cc:dd:ee:01", "192.168.1.10", "Acme")
	if err != nil {
		t.Fatal(err)
	}
	stranger, err := domain.NewDevice("aa:bb:cc:dd:ee:02", "192.168.1.11", "")
	if err != nil {
		t.Fatal(err)
	}
	seen := time.Date(2024, 4, 5, 6, 7, 8, 0, time.UTC)
	snaps := []presence.Snapshot{
		{Device: dev, LastSeen: seen, Online: true, Activity: "OO-", Samples: 3, BaseRate: 2.0 / 3},
		{Device: stranger, LastSeen: seen, Online: false, Activity: "---", Samples: 3},
	}
	return NewInventory(snaps, map[domain.MACAddress]string{dev.MAC: "Printer"}, seen)
}

func TestNewInventory(t *testing.T) {
	inv := testInventory(t)
	if len(inv.Devices) != 2 {
		t.Fatalf("expected 2 records, got %d", len(inv.Devices))
	}
	if inv.Devices[0].Name != "Printer" {
		t.Errorf("expected name Printer, got %q", inv.Devices[0].Name)
	}
	if inv.Devices[1].Name != "" {
		t.Errorf("expected unnamed device, got %q", inv.Devices[1].Name)
	}
	if inv.Devices[0].IP != "192.168.1.10" {
		t.Errorf("expected IP 192.168.1.10, got %s", inv.Devices[0].IP)
	}
}

func TestExporters(t *testing.T) {
	inv := testInventory(t)

	tests := []struct {
		format    string
		unmarshal func([]byte, any) error
	}{
		{"json", json.Unmarshal},
		{"yaml", yaml.Unmarshal},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp := ForFormat(tt.format)
			if exp == nil {
				t.Fatalf("no exporter for %s", tt.format)
			}
			if exp.Format() != tt.format {
				t.Errorf("Format() = %s, want %s", exp.Format(), tt.format)
			}

			var buf bytes.Buffer
			if err := exp.Export(inv, &buf); err != nil {
				t.Fatalf("Export() error: %v", err)
			}

			var got Inventory
			if err := tt.unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("output does not parse: %v\n%s", err, buf.String())
			}
			if len(got.Devices) != 2 || got.Devices[0].MAC != "aa:bb:cc:dd:ee:01" {
				t.Errorf("unexpected devices: %+v", got.Devices)
			}
			if !got.GeneratedAt.Equal(inv.GeneratedAt) {
				t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, inv.GeneratedAt)
			}
		})
	}
}

func TestForFormatUnknown(t *testing.T) {
	if ForFormat("ansible") != nil {
		t.Error("expected nil exporter for unknown format")
	}
}
