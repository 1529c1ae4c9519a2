package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"lanwatch/internal/domain"
	"lanwatch/internal/presence"
)

// nullToString converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts a bool to SQLite's integer form
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// deviceRow mirrors one row of the devices table
type deviceRow struct {
	MAC      string
	IP       string
	Vendor   sql.NullString
	LastSeen string
	Online   int
	History  string
}

func rowFromState(s presence.DeviceState) deviceRow {
	history := ""
	if s.History != nil {
		history = s.History.String()
	}
	return deviceRow{
		MAC:      s.Device.MAC.String(),
		IP:       s.Device.IP.String(),
		Vendor:   stringToNull(s.Device.Vendor),
		LastSeen: s.LastSeen.UTC().Format(timeLayout),
		Online:   boolToInt(s.Online),
		History:  history,
	}
}

func (r *deviceRow) insertArgs() []interface{} {
	return []interface{}{r.MAC, r.IP, r.Vendor, r.LastSeen, r.Online, r.History}
}

func (r *deviceRow) scanArgs() []interface{} {
	return []interface{}{&r.MAC, &r.IP, &r.Vendor, &r.LastSeen, &r.Online, &r.History}
}

func (r *deviceRow) toDomain() (presence.DeviceState, error) {
	device, err := domain.NewDevice(r.MAC, r.IP, nullToString(r.Vendor))
	if err != nil {
		return presence.DeviceState{}, fmt.Errorf("stored device %q: %w", r.MAC, err)
	}

	lastSeen, err := time.Parse(timeLayout, r.LastSeen)
	if err != nil {
		return presence.DeviceState{}, fmt.Errorf("stored device %q: bad last_seen: %w", r.MAC, err)
	}

	samples := presence.ParseActivity(r.History)
	return presence.DeviceState{
		Device:   device,
		LastSeen: lastSeen,
		Online:   r.Online != 0,
		History:  presence.SampleWindowFrom(len(samples), samples),
	}, nil
}
