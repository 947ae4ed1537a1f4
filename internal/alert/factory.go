package alert

import (
	"fmt"

	"triage/internal/broker"
	"triage/internal/config"
	"triage/internal/logger"
)

// NewNotifier assembles the configured notifiers. The log notifier is always
// present; producer may be nil when no alert topic is configured.
func NewNotifier(cfg config.AlertConfig, producer broker.Producer, log logger.Logger) (Notifier, error) {
	notifiers := MultiNotifier{NewLogNotifier(log)}

	if cfg.Telegram.Enabled {
		tg, err := NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		notifiers = append(notifiers, tg)
	}

	if cfg.KafkaTopic != "" {
		if producer == nil {
			return nil, fmt.Errorf("alert topic %q configured without a broker", cfg.KafkaTopic)
		}
		notifiers = append(notifiers, NewBrokerNotifier(producer, cfg.KafkaTopic))
	}

	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return notifiers, nil
}
