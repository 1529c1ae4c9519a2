package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

// NmapAdapter discovers devices with an nmap host discovery scan (-sn).
// MAC addresses are only reported for hosts on the local segment and only when
// nmap runs with raw socket privileges.
type NmapAdapter struct {
	targets    []string
	timeout    time.Duration
	iface      string
	privileged bool
	resolveDNS bool
	log        zerolog.Logger

	mu           sync.Mutex
	running      bool
	lastScanTime time.Time
}

// NewNmapAdapter creates a new nmap-based scanning adapter
// targets: list of CIDR ranges or individual IPs to scan
// opts: optional configuration options
func NewNmapAdapter(targets []string, log zerolog.Logger, opts ...NmapOption) *NmapAdapter {
	adapter := &NmapAdapter{
		targets: targets,
		timeout: 2 * time.Minute,
		log:     log.With().Str("component", "nmap").Logger(),
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// Name returns the adapter identifier
func (n *NmapAdapter) Name() string {
	return "nmap"
}

// Start initializes the adapter
func (n *NmapAdapter) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.isNmapAvailable(ctx) {
		return fmt.Errorf("nmap binary not found in PATH")
	}

	n.running = true
	n.log.Info().
		Strs("targets", n.targets).
		Str("interface", n.iface).
		Bool("privileged", n.privileged).
		Msg("nmap adapter started")
	return nil
}

// Stop shuts down the adapter
func (n *NmapAdapter) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.running = false
	n.log.Info().Msg("nmap adapter stopped")
	return nil
}

// LastScanTime reports when the most recent scan started
func (n *NmapAdapter) LastScanTime() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastScanTime
}

// Scan runs one ping scan over all targets
func (n *NmapAdapter) Scan(ctx context.Context) ([]domain.Device, error) {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil, errors.New("adapter not running")
	}
	n.lastScanTime = time.Now()
	n.mu.Unlock()

	if len(n.targets) == 0 {
		return nil, errors.New("no targets configured")
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	scanner, err := nmap.NewScanner(ctx, n.scanOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	n.log.Debug().Strs("targets", n.targets).Msg("starting ping scan")
	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if warnings != nil && len(*warnings) > 0 {
		n.log.Warn().Strs("warnings", *warnings).Msg("nmap reported warnings")
	}

	return n.processResults(result)
}

func (n *NmapAdapter) scanOptions() []nmap.Option {
	opts := []nmap.Option{
		nmap.WithTargets(n.targets...),
		nmap.WithPingScan(),
	}
	if !n.resolveDNS {
		opts = append(opts, nmap.WithDisabledDNSResolution())
	}
	if n.iface != "" {
		opts = append(opts, nmap.WithInterface(n.iface))
	}
	if n.privileged {
		opts = append(opts, nmap.WithPrivileged())
	}
	return opts
}

// isNmapAvailable checks if nmap binary exists
func (n *NmapAdapter) isNmapAvailable(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}

	_, _, err = scanner.Run()
	return err == nil
}

// processResults converts up hosts carrying both an IPv4 and a MAC address
// into devices. Hosts without a MAC cannot be identified and are dropped.
func (n *NmapAdapter) processResults(result *nmap.Run) ([]domain.Device, error) {
	if result == nil {
		return nil, fmt.Errorf("nil scan result")
	}

	devices := make([]domain.Device, 0, len(result.Hosts))
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		var ip, mac, vendor string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				if ip == "" {
					ip = addr.Addr
				}
			case "mac":
				mac = addr.Addr
				vendor = addr.Vendor
			}
		}

		if mac == "" {
			n.log.Debug().Str("ip", ip).Msg("host has no MAC address, skipping")
			continue
		}

		device, err := domain.NewDevice(mac, ip, vendor)
		if err != nil {
			n.log.Warn().Err(err).Str("ip", ip).Str("mac", mac).Msg("skipping malformed host")
			continue
		}
		devices = append(devices, device)
	}

	n.log.Debug().Int("hosts", len(result.Hosts)).Int("devices", len(devices)).Msg("scan complete")
	return devices, nil
}
