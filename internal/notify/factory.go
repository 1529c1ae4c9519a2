package notify

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"lanwatch/internal/config"
)

// FromConfig builds the enabled notifiers. Notifiers that fail to connect are
// reported in the returned error; the rest are still returned.
func FromConfig(cfg config.NotifyConfig, log zerolog.Logger) ([]Notifier, error) {
	var (
		notifiers []Notifier
		errs      []error
	)

	if cfg.Desktop.Enabled {
		notifiers = append(notifiers, NewDesktopNotifier(cfg.Desktop.Command))
	}

	if cfg.Webhook.Enabled {
		client := &http.Client{Timeout: cfg.Timeout.Duration()}
		notifiers = append(notifiers, NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Headers, client))
	}

	if cfg.MQTT.Enabled {
		n, err := NewMQTTNotifier(cfg.MQTT, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		} else {
			notifiers = append(notifiers, n)
		}
	}

	if cfg.NATS.Enabled {
		n, err := NewNATSNotifier(cfg.NATS, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		} else {
			notifiers = append(notifiers, n)
		}
	}

	return notifiers, errors.Join(errs...)
}
