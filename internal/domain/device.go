package domain

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

var (
	// ErrInvalidMAC is returned for hardware addresses that are not 6-octet, 17-character strings
	ErrInvalidMAC = errors.New("invalid MAC address")
	// ErrInvalidIP is returned for addresses that are not IPv4
	ErrInvalidIP = errors.New("invalid IPv4 address")
)

// macLength is the textual length of a 6-octet address including separators
const macLength = 17

// MACAddress is the stable identifier of a device, normalized to lowercase colon form
type MACAddress string

// ParseMACAddress validates and normalizes a hardware address.
// Only 6-octet addresses written with ':' or '-' separators are accepted.
func ParseMACAddress(s string) (MACAddress, error) {
	s = strings.TrimSpace(s)
	if len(s) != macLength {
		return "", fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidMAC, s, len(s), macLength)
	}

	hw, err := net.ParseMAC(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidMAC, s, err)
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("%w: %q is not a 6-octet address", ErrInvalidMAC, s)
	}

	return MACAddress(hw.String()), nil
}

// MustParseMACAddress is like ParseMACAddress but panics on error.
// Intended for tests and constants.
func MustParseMACAddress(s string) MACAddress {
	mac, err := ParseMACAddress(s)
	if err != nil {
		panic(err)
	}
	return mac
}

// IsZero reports whether the address was never set
func (m MACAddress) IsZero() bool {
	return m == ""
}

// Validate checks that the address is in normalized form
func (m MACAddress) Validate() error {
	parsed, err := ParseMACAddress(string(m))
	if err != nil {
		return err
	}
	if parsed != m {
		return fmt.Errorf("%w: %q is not normalized", ErrInvalidMAC, string(m))
	}
	return nil
}

func (m MACAddress) String() string {
	return string(m)
}

// Device is one scan observation: who (MAC), where (IP) and what (vendor label).
// A newer observation replaces the whole record.
type Device struct {
	MAC    MACAddress `json:"mac" yaml:"mac"`
	IP     netip.Addr `json:"ip" yaml:"ip"`
	Vendor string     `json:"vendor,omitempty" yaml:"vendor,omitempty"`
}

// NewDevice builds a validated device from raw scan fields
func NewDevice(mac, ip, vendor string) (Device, error) {
	hw, err := ParseMACAddress(mac)
	if err != nil {
		return Device{}, err
	}

	addr, err := ParseIPv4(ip)
	if err != nil {
		return Device{}, err
	}

	return Device{
		MAC:    hw,
		IP:     addr,
		Vendor: strings.TrimSpace(vendor),
	}, nil
}

// ParseIPv4 parses an IPv4 address, unmapping IPv4-in-IPv6 forms
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q: %v", ErrInvalidIP, s, err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not IPv4", ErrInvalidIP, s)
	}
	return addr, nil
}

// Validate checks a device assembled outside NewDevice
func (d Device) Validate() error {
	if err := d.MAC.Validate(); err != nil {
		return err
	}
	if !d.IP.IsValid() || !d.IP.Is4() {
		return fmt.Errorf("%w: %q", ErrInvalidIP, d.IP.String())
	}
	return nil
}

func (d Device) String() string {
	return fmt.Sprintf("%s\t%s\t%s", d.MAC, d.IP, d.Vendor)
}
