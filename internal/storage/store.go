package storage

import (
	"errors"
	"time"

	"netshield-detector/internal/model"
)

var (
	// ErrStoreUnavailable wraps any backend failure. Classification results
	// stay valid even when persistence fails.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDuplicateBlock marks an attempt to insert an active block for an
	// IP that already has one. Callers treat it as a no-op.
	ErrDuplicateBlock = errors.New("ip already blocked")
	// ErrNotFound marks a lookup miss.
	ErrNotFound = errors.New("not found")
)

// AlertFilter narrows an alert query. Zero fields match everything.
type AlertFilter struct {
	Severity   model.Severity
	AttackType model.AttackType
	SourceIP   string
	Limit      int
}

// Store is the persistence port: insert/query/update over the alert,
// traffic-stats and blocklist tables. Queries return newest-first.
type Store interface {
	InsertAlert(alert model.Alert) error
	Alerts(filter AlertFilter) ([]model.Alert, error)
	AlertByID(id string) (*model.Alert, error)

	InsertTrafficStats(stats model.TrafficStats) error
	LatestTrafficStats() (*model.TrafficStats, error)
	TrafficStats(limit int) ([]model.TrafficStats, error)

	InsertBlockedIP(block model.BlockedIP) error
	BlockedIPs(activeOnly bool) ([]model.BlockedIP, error)
	Unblock(id string, at time.Time) error
}
