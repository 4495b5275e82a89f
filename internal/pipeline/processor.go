package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"netshield-detector/internal/aggregator"
	"netshield-detector/internal/alert"
	"netshield-detector/internal/classifier"
	"netshield-detector/internal/model"
	"netshield-detector/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Result is what a submission produces: the verdict, always, and the alert
// record when one was minted and stored.
type Result struct {
	Verdict     model.Verdict
	Alert       *model.Alert
	AlertStored bool
}

// Processor drives the detection data flow: classify, persist, accumulate
// traffic counters, auto-block, notify. It owns the Deduper, so exactly one
// Processor should exist per process.
type Processor struct {
	classifier classifier.Classifier
	store      storage.Store
	durable    storage.Store
	deduper    *aggregator.Deduper
	dispatcher *alert.Dispatcher
	metrics    *alert.Metrics
	logger     *logrus.Logger
}

// NewProcessor wires the pipeline. durable may be nil; when set, writes are
// mirrored to it best-effort.
func NewProcessor(cls classifier.Classifier, store storage.Store, deduper *aggregator.Deduper, dispatcher *alert.Dispatcher, metrics *alert.Metrics, logger *logrus.Logger) *Processor {
	return &Processor{
		classifier: cls,
		store:      store,
		deduper:    deduper,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// SetDurableStore attaches a durable mirror (e.g. MongoDB).
func (p *Processor) SetDurableStore(durable storage.Store) {
	p.durable = durable
}

// Submit classifies one feature vector and runs the persistence and
// notification side of the flow. The verdict is returned even when store
// writes fail; only an invalid vector is an error.
func (p *Processor) Submit(ctx context.Context, features *model.FeatureVector, sourceIP, destIP string) (*Result, error) {
	start := time.Now()
	verdict, err := p.classifier.Classify(features)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.ClassifyDuration.Observe(time.Since(start).Seconds())
		p.metrics.ClassificationsTotal.WithLabelValues(string(verdict.AttackType)).Inc()
	}

	result := &Result{Verdict: verdict}

	if verdict.IsMalicious {
		a := model.Alert{
			ID:              uuid.NewString(),
			Timestamp:       time.Now(),
			SourceIP:        sourceIP,
			DestIP:          destIP,
			AttackType:      verdict.AttackType,
			Severity:        verdict.Severity,
			ConfidenceScore: verdict.Confidence,
			PacketData:      features,
		}
		if err := p.insertAlert(a); err != nil {
			p.logger.Errorf("Failed to store alert: %v", err)
		} else {
			result.Alert = &a
			result.AlertStored = true
		}

		if verdict.Severity == model.SeverityCritical {
			p.autoBlock(a)
		}
		p.notify(a)
	}

	p.accumulateTrafficStats(verdict.IsMalicious, int64(features.SrcBytes+features.DstBytes))

	return result, nil
}

// IngestAlert feeds a pre-built alert (demo traffic) through the same
// persistence, auto-block and notification path as a classified one.
func (p *Processor) IngestAlert(a model.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if err := p.insertAlert(a); err != nil {
		return err
	}
	if a.Severity == model.SeverityCritical {
		p.autoBlock(a)
	}
	p.notify(a)
	return nil
}

// IngestTrafficStats appends a pre-built counter snapshot (demo traffic).
func (p *Processor) IngestTrafficStats(stats model.TrafficStats) error {
	if stats.ID == "" {
		stats.ID = uuid.NewString()
	}
	if err := p.store.InsertTrafficStats(stats); err != nil {
		p.countStoreError("insert_stats")
		return err
	}
	p.mirror(func(s storage.Store) error { return s.InsertTrafficStats(stats) }, "insert_stats")
	return nil
}

func (p *Processor) insertAlert(a model.Alert) error {
	if err := p.store.InsertAlert(a); err != nil {
		p.countStoreError("insert_alert")
		return err
	}
	if p.metrics != nil {
		p.metrics.AlertsTotal.WithLabelValues(string(a.Severity)).Inc()
	}
	p.mirror(func(s storage.Store) error { return s.InsertAlert(a) }, "insert_alert")
	return nil
}

// accumulateTrafficStats reads the latest snapshot and appends an
// incremented one. Concurrent submissions can race and under-count; the
// counters are approximate by design.
func (p *Processor) accumulateTrafficStats(malicious bool, bytes int64) {
	if bytes <= 0 {
		bytes = 1500 // average packet size
	}

	var latest model.TrafficStats
	if prev, err := p.store.LatestTrafficStats(); err == nil {
		latest = *prev
	} else if !errors.Is(err, storage.ErrNotFound) {
		p.countStoreError("latest_stats")
		p.logger.Errorf("Failed to read latest traffic stats: %v", err)
		return
	}

	next := model.TrafficStats{
		ID:               uuid.NewString(),
		Timestamp:        time.Now(),
		TotalPackets:     latest.TotalPackets + 1,
		NormalPackets:    latest.NormalPackets,
		MaliciousPackets: latest.MaliciousPackets,
		BytesTransferred: latest.BytesTransferred + bytes,
	}
	if malicious {
		next.MaliciousPackets++
	} else {
		next.NormalPackets++
	}

	if err := p.store.InsertTrafficStats(next); err != nil {
		p.countStoreError("insert_stats")
		p.logger.Errorf("Failed to store traffic stats: %v", err)
		return
	}
	p.mirror(func(s storage.Store) error { return s.InsertTrafficStats(next) }, "insert_stats")
}

// Block records a block on the primary store and mirrors it. Missing
// identity fields are filled in. ErrDuplicateBlock passes through so
// callers can treat re-blocking as idempotent.
func (p *Processor) Block(block model.BlockedIP) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.BlockedAt.IsZero() {
		block.BlockedAt = time.Now()
	}

	err := p.store.InsertBlockedIP(block)
	if errors.Is(err, storage.ErrDuplicateBlock) {
		return err
	}
	if err != nil {
		p.countStoreError("insert_block")
		return err
	}
	if p.metrics != nil {
		p.metrics.BlockedIPsTotal.Inc()
	}
	p.mirror(func(s storage.Store) error { return s.InsertBlockedIP(block) }, "insert_block")
	return nil
}

// Unblock flips a block inactive on the primary store and mirrors the
// transition.
func (p *Processor) Unblock(id string, at time.Time) error {
	err := p.store.Unblock(id, at)
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err != nil {
		p.countStoreError("unblock")
		return err
	}
	p.mirror(func(s storage.Store) error { return s.Unblock(id, at) }, "unblock")
	return nil
}

// autoBlock applies the auto-block policy: a Critical alert blocks its
// source IP. A duplicate active block is an idempotent no-op.
func (p *Processor) autoBlock(a model.Alert) {
	block := model.BlockedIP{
		ID:          uuid.NewString(),
		IPAddress:   a.SourceIP,
		BlockReason: fmt.Sprintf("Detected %s attack pattern", a.AttackType),
		BlockedAt:   time.Now(),
		IsActive:    true,
	}
	err := p.Block(block)
	if errors.Is(err, storage.ErrDuplicateBlock) {
		p.logger.Debugf("IP %s already has an active block, skipping", a.SourceIP)
		return
	}
	if err != nil {
		p.logger.Errorf("Failed to store blocked IP: %v", err)
		return
	}
	p.logger.Infof("Auto-blocked %s: %s", block.IPAddress, block.BlockReason)
}

func (p *Processor) notify(a model.Alert) {
	for _, n := range p.deduper.Observe(a) {
		p.dispatcher.Emit(n)
	}
}

// mirror replays a write on the durable store, logging failures instead of
// surfacing them.
func (p *Processor) mirror(write func(storage.Store) error, operation string) {
	if p.durable == nil {
		return
	}
	if err := write(p.durable); err != nil {
		p.countStoreError(operation)
		p.logger.Warnf("Durable store write failed (%s): %v", operation, err)
	}
}

func (p *Processor) countStoreError(operation string) {
	if p.metrics != nil {
		p.metrics.StoreErrors.WithLabelValues(operation).Inc()
	}
}
