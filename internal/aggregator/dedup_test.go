package aggregator

import (
	"fmt"
	"testing"
	"time"

	"netshield-detector/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDeduper(capacity, threshold int, window time.Duration) (*Deduper, *fakeClock) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	d := NewDeduper(capacity, threshold, window, logger)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	d.SetClock(clock.Now)
	return d, clock
}

func criticalAlert(id string) model.Alert {
	return model.Alert{
		ID:         id,
		SourceIP:   "203.0.113.7",
		AttackType: model.AttackR2L,
		Severity:   model.SeverityCritical,
	}
}

func TestObserveEmitsCriticalOnce(t *testing.T) {
	d, _ := newTestDeduper(16, 100, time.Minute)

	first := d.Observe(criticalAlert("alert-1"))
	require.Len(t, first, 1)
	assert.Equal(t, NotificationCritical, first[0].Kind)
	assert.Contains(t, first[0].Message, "203.0.113.7")
	require.NotNil(t, first[0].Alert)
	assert.Equal(t, "alert-1", first[0].Alert.ID)

	second := d.Observe(criticalAlert("alert-1"))
	assert.Empty(t, second, "re-observing the same alert ID must not notify again")
}

func TestObserveIgnoresNonCritical(t *testing.T) {
	d, _ := newTestDeduper(16, 100, time.Minute)

	alert := criticalAlert("alert-2")
	alert.Severity = model.SeverityHigh

	assert.Empty(t, d.Observe(alert))
}

func TestObserveHighVolumeWarning(t *testing.T) {
	d, clock := newTestDeduper(16, 10, time.Minute)

	// 12 non-critical alerts inside the window trip exactly one warning.
	var warnings int
	for i := 0; i < 12; i++ {
		alert := model.Alert{ID: fmt.Sprintf("a-%d", i), Severity: model.SeverityMedium}
		for _, n := range d.Observe(alert) {
			if n.Kind == NotificationHighVolume {
				warnings++
			}
		}
		clock.Advance(time.Second)
	}
	assert.Equal(t, 1, warnings)

	// Another alert 5 seconds later is still inside the cooldown.
	clock.Advance(5 * time.Second)
	assert.Empty(t, d.Observe(model.Alert{ID: "a-12", Severity: model.SeverityMedium}))

	// Past the window a fresh burst may warn again.
	clock.Advance(65 * time.Second)
	warnings = 0
	for i := 0; i < 10; i++ {
		alert := model.Alert{ID: fmt.Sprintf("b-%d", i), Severity: model.SeverityMedium}
		for _, n := range d.Observe(alert) {
			if n.Kind == NotificationHighVolume {
				warnings++
			}
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestObserveBatchMixesKinds(t *testing.T) {
	d, _ := newTestDeduper(16, 3, time.Minute)

	out := d.Observe(
		criticalAlert("c-1"),
		model.Alert{ID: "m-1", Severity: model.SeverityMedium},
		criticalAlert("c-2"),
	)

	var criticals, volumes int
	for _, n := range out {
		switch n.Kind {
		case NotificationCritical:
			criticals++
		case NotificationHighVolume:
			volumes++
		}
	}
	assert.Equal(t, 2, criticals)
	assert.Equal(t, 1, volumes)
}

func TestDeduperEvictsOldestID(t *testing.T) {
	d, _ := newTestDeduper(2, 100, time.Minute)

	require.Len(t, d.Observe(criticalAlert("a")), 1)
	require.Len(t, d.Observe(criticalAlert("b")), 1)
	require.Len(t, d.Observe(criticalAlert("c")), 1)

	// "a" was evicted to make room for "c", so it notifies again.
	assert.Len(t, d.Observe(criticalAlert("a")), 1)
	// "c" is still remembered.
	assert.Empty(t, d.Observe(criticalAlert("c")))
}
