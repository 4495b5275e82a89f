package alert

import "netshield-detector/internal/aggregator"

// Notifier delivers one notification over a single channel (log, telegram,
// webhook).
type Notifier interface {
	Send(notification aggregator.Notification) error
}
