package alert

import (
	"netshield-detector/internal/aggregator"

	"github.com/sirupsen/logrus"
)

// LogNotifier sends notifications to local logs
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

// Send implements Notifier interface - writes the notification to logs
func (ln *LogNotifier) Send(notification aggregator.Notification) error {
	if notification.Alert != nil {
		ln.logger.Warnf("NOTIFY [%s] %s: %s (confidence %.2f)",
			notification.Alert.Severity, notification.Kind, notification.Message,
			notification.Alert.ConfidenceScore)
		return nil
	}
	ln.logger.Warnf("NOTIFY [%s]: %s", notification.Kind, notification.Message)
	return nil
}
