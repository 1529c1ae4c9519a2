package adapter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lanwatch/internal/config"
	"lanwatch/internal/domain"
)

//go:generate mockgen -destination=mock_scanner.go -package=adapter lanwatch/internal/adapter Scanner

// Scanner produces the set of devices visible on the network right now.
// A returned error means no observation was made; callers must not treat it as
// an empty network.
type Scanner interface {
	// Name returns the unique identifier for this scanner
	Name() string

	// Start checks that the scanner can run (binary present, privileges)
	Start(ctx context.Context) error

	// Stop releases any resources
	Stop() error

	// Scan performs one discovery round
	Scan(ctx context.Context) ([]domain.Device, error)
}

// New builds the scanner selected by the scan config section
func New(cfg config.ScanConfig, log zerolog.Logger) (Scanner, error) {
	switch cfg.Backend {
	case config.BackendArpScan:
		opts := []ArpScanOption{WithArpScanTimeout(cfg.Timeout.Duration())}
		if cfg.Interface != "" {
			opts = append(opts, WithArpScanInterface(cfg.Interface))
		}
		if len(cfg.Targets) > 0 {
			opts = append(opts, WithArpScanTargets(cfg.Targets))
		}
		if cfg.Command != "" {
			opts = append(opts, WithArpScanCommand(cfg.Command))
		}
		return NewArpScanAdapter(log, opts...), nil

	case config.BackendNmap:
		opts := []NmapOption{WithTimeout(cfg.Timeout.Duration())}
		if cfg.Interface != "" {
			opts = append(opts, WithInterface(cfg.Interface))
		}
		return NewNmapAdapter(cfg.Targets, log, opts...), nil

	default:
		return nil, fmt.Errorf("unknown scan backend %q", cfg.Backend)
	}
}
