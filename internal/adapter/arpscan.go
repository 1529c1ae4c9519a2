package adapter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

// arpScanFormat makes arp-scan print one tab-separated record per host
const arpScanFormat = "--format=${ip}\t${mac}\t${vendor}"

// CommandRunner executes an external command and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// ArpScanOption is a functional option for configuring ArpScanAdapter
type ArpScanOption func(*ArpScanAdapter)

// WithArpScanInterface restricts the scan to one interface (-I)
func WithArpScanInterface(iface string) ArpScanOption {
	return func(a *ArpScanAdapter) {
		a.iface = iface
	}
}

// WithArpScanTargets scans explicit targets instead of --localnet
func WithArpScanTargets(targets []string) ArpScanOption {
	return func(a *ArpScanAdapter) {
		a.targets = targets
	}
}

// WithArpScanTimeout bounds a single scan
func WithArpScanTimeout(d time.Duration) ArpScanOption {
	return func(a *ArpScanAdapter) {
		a.timeout = d
	}
}

// WithArpScanCommand overrides the arp-scan binary
func WithArpScanCommand(command string) ArpScanOption {
	return func(a *ArpScanAdapter) {
		a.command = command
	}
}

// WithCommandRunner replaces command execution, mainly for tests
func WithCommandRunner(run CommandRunner) ArpScanOption {
	return func(a *ArpScanAdapter) {
		a.run = run
	}
}

// ArpScanAdapter discovers devices with the arp-scan utility
type ArpScanAdapter struct {
	command string
	iface   string
	targets []string
	timeout time.Duration
	run     CommandRunner
	lookup  func(string) (string, error)
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewArpScanAdapter creates an arp-scan backed scanner
func NewArpScanAdapter(log zerolog.Logger, opts ...ArpScanOption) *ArpScanAdapter {
	a := &ArpScanAdapter{
		command: "arp-scan",
		timeout: 2 * time.Minute,
		run:     execRunner,
		lookup:  exec.LookPath,
		log:     log.With().Str("component", "arp-scan").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the adapter identifier
func (a *ArpScanAdapter) Name() string {
	return "arp-scan"
}

// Start verifies the binary is installed
func (a *ArpScanAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.lookup(a.command); err != nil {
		return fmt.Errorf("%s binary not found in PATH: %w", a.command, err)
	}

	a.running = true
	a.log.Info().Str("interface", a.iface).Strs("targets", a.targets).Msg("arp-scan adapter started")
	return nil
}

// Stop shuts down the adapter
func (a *ArpScanAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
	return nil
}

// Scan runs arp-scan once and returns the valid records
func (a *ArpScanAdapter) Scan(ctx context.Context) ([]domain.Device, error) {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()
	if !running {
		return nil, errors.New("adapter not running")
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	args := a.args()
	a.log.Debug().Strs("args", args).Msg("starting network scan")

	out, err := a.run(ctx, a.command, args...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", a.command, err)
	}

	devices, rejects := ParseArpScanOutput(bytes.NewReader(out))
	for _, err := range rejects {
		a.log.Warn().Err(err).Msg("skipping malformed arp-scan record")
	}

	a.log.Debug().Int("devices", len(devices)).Int("rejected", len(rejects)).Msg("scan complete")
	return devices, nil
}

func (a *ArpScanAdapter) args() []string {
	args := []string{"--plain", arpScanFormat}
	if a.iface != "" {
		args = append(args, "--interface="+a.iface)
	}
	if len(a.targets) == 0 {
		return append(args, "--localnet")
	}
	return append(args, a.targets...)
}

// ParseArpScanOutput parses "ip<TAB>mac<TAB>vendor" lines. Each malformed line
// produces an error and is skipped; the rest of the output is still used.
func ParseArpScanOutput(r io.Reader) ([]domain.Device, []error) {
	var (
		devices []domain.Device
		rejects []error
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 {
			rejects = append(rejects, fmt.Errorf("line %d: missing MAC address: %q", lineNo, line))
			continue
		}

		vendor := ""
		if len(fields) == 3 {
			vendor = fields[2]
		}

		device, err := domain.NewDevice(fields[1], fields[0], vendor)
		if err != nil {
			rejects = append(rejects, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		devices = append(devices, device)
	}

	if err := scanner.Err(); err != nil {
		rejects = append(rejects, fmt.Errorf("read output: %w", err))
	}
	return devices, rejects
}
