package storage

import (
	"sync"
	"time"

	"netshield-detector/internal/model"

	"github.com/sirupsen/logrus"
)

// MemoryStore keeps bounded in-memory tables and fans out change
// notifications to subscribers. It is the authoritative view the dashboard
// reads; a durable backend can mirror it.
type MemoryStore struct {
	mu        sync.RWMutex
	alerts    []model.Alert
	stats     []model.TrafficStats
	blocked   []model.BlockedIP
	maxAlerts int
	maxStats  int
	logger    *logrus.Logger

	alertSubs   map[*AlertSubscriber]bool
	alertSubsMu sync.RWMutex
	statsSubs   map[*StatsSubscriber]bool
	statsSubsMu sync.RWMutex
}

// AlertSubscriber receives every inserted alert that passes its filter.
// Sends are non-blocking; a full channel drops the event.
type AlertSubscriber struct {
	ID       string
	Channel  chan model.Alert
	Severity model.Severity
	LastSeen time.Time
}

// StatsSubscriber receives every inserted traffic-stats snapshot.
type StatsSubscriber struct {
	ID       string
	Channel  chan model.TrafficStats
	LastSeen time.Time
}

// NewMemoryStore builds an empty store. It retains the most recent 10k
// alerts and 1k stats snapshots.
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		alerts:    make([]model.Alert, 0),
		stats:     make([]model.TrafficStats, 0),
		blocked:   make([]model.BlockedIP, 0),
		maxAlerts: 10000,
		maxStats:  1000,
		logger:    logger,
		alertSubs: make(map[*AlertSubscriber]bool),
		statsSubs: make(map[*StatsSubscriber]bool),
	}
}

// InsertAlert appends an alert and notifies subscribers.
func (s *MemoryStore) InsertAlert(alert model.Alert) error {
	s.mu.Lock()
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-s.maxAlerts:]
	}
	s.mu.Unlock()

	s.notifyAlertSubscribers(alert)
	return nil
}

// Alerts returns matching alerts, newest first.
func (s *MemoryStore) Alerts(filter AlertFilter) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	result := make([]model.Alert, 0)
	for i := len(s.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		alert := s.alerts[i]
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		if filter.AttackType != "" && alert.AttackType != filter.AttackType {
			continue
		}
		if filter.SourceIP != "" && alert.SourceIP != filter.SourceIP {
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

func (s *MemoryStore) AlertByID(id string) (*model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			alert := s.alerts[i]
			return &alert, nil
		}
	}
	return nil, ErrNotFound
}

// InsertTrafficStats appends a counter snapshot and notifies subscribers.
func (s *MemoryStore) InsertTrafficStats(stats model.TrafficStats) error {
	s.mu.Lock()
	if stats.Timestamp.IsZero() {
		stats.Timestamp = time.Now()
	}
	s.stats = append(s.stats, stats)
	if len(s.stats) > s.maxStats {
		s.stats = s.stats[len(s.stats)-s.maxStats:]
	}
	s.mu.Unlock()

	s.notifyStatsSubscribers(stats)
	return nil
}

// LatestTrafficStats returns the most recent snapshot, or ErrNotFound when
// no snapshot has been written yet.
func (s *MemoryStore) LatestTrafficStats() (*model.TrafficStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.stats) == 0 {
		return nil, ErrNotFound
	}
	latest := s.stats[len(s.stats)-1]
	return &latest, nil
}

func (s *MemoryStore) TrafficStats(limit int) ([]model.TrafficStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	result := make([]model.TrafficStats, 0, limit)
	for i := len(s.stats) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.stats[i])
	}
	return result, nil
}

// InsertBlockedIP records a block. A second active block for the same IP is
// rejected with ErrDuplicateBlock so callers can treat it as idempotent.
func (s *MemoryStore) InsertBlockedIP(block model.BlockedIP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.IsActive {
		for i := range s.blocked {
			if s.blocked[i].IsActive && s.blocked[i].IPAddress == block.IPAddress {
				return ErrDuplicateBlock
			}
		}
	}
	if block.BlockedAt.IsZero() {
		block.BlockedAt = time.Now()
	}
	s.blocked = append(s.blocked, block)
	return nil
}

// BlockedIPs returns block records, newest first.
func (s *MemoryStore) BlockedIPs(activeOnly bool) ([]model.BlockedIP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.BlockedIP, 0)
	for i := len(s.blocked) - 1; i >= 0; i-- {
		if activeOnly && !s.blocked[i].IsActive {
			continue
		}
		result = append(result, s.blocked[i])
	}
	return result, nil
}

// Unblock flips a block inactive and stamps unblock_at. The transition
// happens at most once per record.
func (s *MemoryStore) Unblock(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.blocked {
		if s.blocked[i].ID != id {
			continue
		}
		if !s.blocked[i].IsActive {
			return nil
		}
		s.blocked[i].IsActive = false
		unblockAt := at
		s.blocked[i].UnblockAt = &unblockAt
		return nil
	}
	return ErrNotFound
}

// Subscription fan-out.

func (s *MemoryStore) SubscribeAlerts(sub *AlertSubscriber) {
	s.alertSubsMu.Lock()
	defer s.alertSubsMu.Unlock()
	s.alertSubs[sub] = true
}

func (s *MemoryStore) UnsubscribeAlerts(sub *AlertSubscriber) {
	s.alertSubsMu.Lock()
	defer s.alertSubsMu.Unlock()
	delete(s.alertSubs, sub)
	close(sub.Channel)
}

func (s *MemoryStore) SubscribeStats(sub *StatsSubscriber) {
	s.statsSubsMu.Lock()
	defer s.statsSubsMu.Unlock()
	s.statsSubs[sub] = true
}

func (s *MemoryStore) UnsubscribeStats(sub *StatsSubscriber) {
	s.statsSubsMu.Lock()
	defer s.statsSubsMu.Unlock()
	delete(s.statsSubs, sub)
	close(sub.Channel)
}

func (s *MemoryStore) notifyAlertSubscribers(alert model.Alert) {
	s.alertSubsMu.RLock()
	defer s.alertSubsMu.RUnlock()

	for sub := range s.alertSubs {
		if sub.Severity != "" && alert.Severity != sub.Severity {
			continue
		}
		select {
		case sub.Channel <- alert:
			sub.LastSeen = time.Now()
		default:
			// Channel full, skip
		}
	}
}

func (s *MemoryStore) notifyStatsSubscribers(stats model.TrafficStats) {
	s.statsSubsMu.RLock()
	defer s.statsSubsMu.RUnlock()

	for sub := range s.statsSubs {
		select {
		case sub.Channel <- stats:
			sub.LastSeen = time.Now()
		default:
			// Channel full, skip
		}
	}
}
