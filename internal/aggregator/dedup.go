package aggregator

import (
	"fmt"
	"sync"
	"time"

	"netshield-detector/internal/model"

	"github.com/sirupsen/logrus"
)

// NotificationKind distinguishes the two notification triggers.
type NotificationKind string

const (
	NotificationCritical   NotificationKind = "critical_alert"
	NotificationHighVolume NotificationKind = "high_volume"
)

// Notification is an emission decision made by the Deduper. Delivery is the
// dispatcher's job.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Alert     *model.Alert     `json:"alert,omitempty"`
}

// Deduper owns the mutable notification state: which critical alert IDs
// have already been notified on, and when the last high-volume warning went
// out. It must be confined to one logical owner; independent instances
// de-duplicate independently.
type Deduper struct {
	mu sync.Mutex

	seen     map[string]struct{}
	order    []string
	capacity int

	window          time.Duration
	volumeThreshold int
	arrivals        []time.Time
	lastWarned      time.Time

	now    func() time.Time
	logger *logrus.Logger
}

// NewDeduper builds a Deduper. capacity bounds the seen-ID set (alert IDs
// are never reused, so eviction only matters for memory); volumeThreshold
// alerts within window trigger at most one warning per window.
func NewDeduper(capacity, volumeThreshold int, window time.Duration, logger *logrus.Logger) *Deduper {
	if capacity <= 0 {
		capacity = 1024
	}
	if volumeThreshold <= 0 {
		volumeThreshold = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Deduper{
		seen:            make(map[string]struct{}),
		capacity:        capacity,
		window:          window,
		volumeThreshold: volumeThreshold,
		now:             time.Now,
		logger:          logger,
	}
}

// SetClock replaces the time source for tests.
func (d *Deduper) SetClock(now func() time.Time) {
	d.now = now
}

// Observe records a batch of freshly arrived alerts and returns the
// notifications that should go out: one per not-yet-seen critical alert,
// plus at most one high-volume warning per rolling window.
func (d *Deduper) Observe(alerts ...model.Alert) []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var out []Notification

	for i := range alerts {
		alert := alerts[i]
		d.arrivals = append(d.arrivals, now)

		if alert.Severity != model.SeverityCritical {
			continue
		}
		if _, ok := d.seen[alert.ID]; ok {
			continue
		}
		d.remember(alert.ID)
		out = append(out, Notification{
			Kind:      NotificationCritical,
			Message:   fmt.Sprintf("%s detected from %s", alert.AttackType, alert.SourceIP),
			Timestamp: now,
			Alert:     &alert,
		})
	}

	d.pruneArrivals(now)

	if len(d.arrivals) >= d.volumeThreshold && now.Sub(d.lastWarned) > d.window {
		d.lastWarned = now
		out = append(out, Notification{
			Kind:      NotificationHighVolume,
			Message:   fmt.Sprintf("High alert volume: %d alerts in the last minute", len(d.arrivals)),
			Timestamp: now,
		})
		d.logger.Warnf("High alert volume: %d alerts within %s", len(d.arrivals), d.window)
	}

	return out
}

// remember adds an ID to the seen set, evicting the oldest entry once the
// set is full.
func (d *Deduper) remember(id string) {
	if len(d.order) >= d.capacity {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
}

func (d *Deduper) pruneArrivals(now time.Time) {
	cutoff := now.Add(-d.window)
	kept := d.arrivals[:0]
	for _, t := range d.arrivals {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	d.arrivals = kept
}
