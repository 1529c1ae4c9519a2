package watcher

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"lanwatch/internal/config"
	"lanwatch/internal/domain"
)

// NameSetter receives a new MAC to name table
type NameSetter interface {
	SetNames(names map[domain.MACAddress]string)
}

// DeviceNames reloads the devices section of the config file into target
// whenever the file changes. Other sections need a restart.
type DeviceNames struct {
	path    string
	target  NameSetter
	watcher *Watcher
	log     zerolog.Logger
}

// NewDeviceNames creates a reloader for the config at path
func NewDeviceNames(path string, target NameSetter, log zerolog.Logger) *DeviceNames {
	d := &DeviceNames{
		path:   path,
		target: target,
		log:    log.With().Str("component", "reload").Logger(),
	}
	d.watcher = New(path, func() { _ = d.Reload() }, log)
	return d
}

// Reload reads the file once and applies the device names. An invalid file
// keeps the previous table.
func (d *DeviceNames) Reload() error {
	cfg, _, err := config.LoadFromPath(d.path)
	if err != nil {
		d.log.Warn().Err(err).Str("path", d.path).Msg("config reload failed, keeping previous device names")
		return err
	}

	names, err := cfg.DeviceNames()
	if err != nil {
		d.log.Warn().Err(err).Msg("invalid device names, keeping previous table")
		return err
	}

	d.target.SetNames(names)
	d.log.Info().Int("devices", len(names)).Msg("device names reloaded")
	return nil
}

// Run watches the file until ctx is done
func (d *DeviceNames) Run(ctx context.Context) error {
	err := d.watcher.Watch(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
