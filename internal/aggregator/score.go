package aggregator

import (
	"math"

	"netshield-detector/internal/model"
)

// Action is the response recommended for an alert.
type Action string

const (
	ActionBlockImmediately Action = "BLOCK IMMEDIATELY"
	ActionBlockAndMonitor  Action = "BLOCK & MONITOR"
	ActionMonitorClosely   Action = "MONITOR CLOSELY"
	ActionLogAndContinue   Action = "LOG & CONTINUE"
)

// severityFloors keeps a low confidence value from contradicting the
// severity band on the dashboard.
var severityFloors = map[model.Severity]int{
	model.SeverityCritical: 90,
	model.SeverityHigh:     70,
	model.SeverityMedium:   50,
	model.SeverityLow:      0,
}

// ThreatScore maps an alert to a 0-100 composite score: confidence scaled
// to percent, raised to the per-severity floor.
func ThreatScore(alert model.Alert) int {
	score := int(math.Round(alert.ConfidenceScore * 100))
	if floor := severityFloors[alert.Severity]; score < floor {
		score = floor
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// RecommendedAction derives the response from severity alone.
func RecommendedAction(alert model.Alert) Action {
	switch alert.Severity {
	case model.SeverityCritical:
		return ActionBlockImmediately
	case model.SeverityHigh:
		return ActionBlockAndMonitor
	case model.SeverityMedium:
		return ActionMonitorClosely
	default:
		return ActionLogAndContinue
	}
}
