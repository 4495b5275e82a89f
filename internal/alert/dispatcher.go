package alert

import (
	"sync"

	"netshield-detector/internal/aggregator"

	"github.com/sirupsen/logrus"
)

// Dispatcher fans a notification out to every registered notifier and onto
// a buffered channel for in-process consumers. A full channel drops rather
// than blocks.
type Dispatcher struct {
	notifiers []Notifier
	logger    *logrus.Logger
	mu        sync.RWMutex
	channel   chan aggregator.Notification
	metrics   *Metrics
}

func NewDispatcher(logger *logrus.Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		notifiers: make([]Notifier, 0),
		logger:    logger,
		channel:   make(chan aggregator.Notification, 100),
		metrics:   metrics,
	}
}

func (d *Dispatcher) RegisterNotifier(notifier Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, notifier)
}

// Emit delivers one notification. Notifier failures are logged, never
// propagated; delivery is best-effort by design.
func (d *Dispatcher) Emit(notification aggregator.Notification) {
	select {
	case d.channel <- notification:
	default:
		d.logger.Error("Notification channel is full, dropping notification")
	}

	d.mu.RLock()
	notifiers := make([]Notifier, len(d.notifiers))
	copy(notifiers, d.notifiers)
	d.mu.RUnlock()

	for _, notifier := range notifiers {
		if err := notifier.Send(notification); err != nil {
			d.logger.Errorf("Failed to send notification: %v", err)
			continue
		}
		if d.metrics != nil {
			d.metrics.NotificationsSent.WithLabelValues(string(notification.Kind)).Inc()
		}
	}
}

// Channel exposes the notification stream to in-process consumers.
func (d *Dispatcher) Channel() <-chan aggregator.Notification {
	return d.channel
}
