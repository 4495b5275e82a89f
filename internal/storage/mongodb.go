package storage

import (
	"fmt"
	"time"

	"netshield-detector/internal/model"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/sirupsen/logrus"
)

const (
	alertCollection   = "network_alerts"
	statsCollection   = "traffic_stats"
	blockedCollection = "blocked_ips"
)

// MongoStore persists alerts, traffic stats and blocklist records in
// MongoDB. It implements Store so the pipeline can mirror writes to it;
// every failure is wrapped in ErrStoreUnavailable.
type MongoStore struct {
	session  *mgo.Session
	database string
	logger   *logrus.Logger
}

// NewMongoStore dials MongoDB with a connect timeout and ensures the
// indexes the dashboard queries rely on.
func NewMongoStore(url, database string, timeout time.Duration, logger *logrus.Logger) (*MongoStore, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	session, err := mgo.DialWithTimeout(url, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrStoreUnavailable, url, err)
	}
	session.SetSyncTimeout(timeout)

	store := &MongoStore{
		session:  session,
		database: database,
		logger:   logger,
	}
	if err := store.createIndexes(); err != nil {
		session.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying session.
func (s *MongoStore) Close() {
	s.session.Close()
}

func (s *MongoStore) createIndexes() error {
	session := s.session.Copy()
	defer session.Close()

	indexes := map[string][]mgo.Index{
		alertCollection: {
			{Key: []string{"-timestamp"}},
			{Key: []string{"source_ip"}},
			{Key: []string{"severity"}},
		},
		statsCollection: {
			{Key: []string{"-timestamp"}},
		},
		blockedCollection: {
			{Key: []string{"ip_address", "is_active"}},
		},
	}

	for coll, set := range indexes {
		for _, index := range set {
			if err := session.DB(s.database).C(coll).EnsureIndex(index); err != nil {
				return fmt.Errorf("%w: ensure index on %s: %v", ErrStoreUnavailable, coll, err)
			}
		}
	}
	return nil
}

func (s *MongoStore) InsertAlert(alert model.Alert) error {
	session := s.session.Copy()
	defer session.Close()

	if err := session.DB(s.database).C(alertCollection).Insert(alert); err != nil {
		return fmt.Errorf("%w: insert alert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Alerts(filter AlertFilter) ([]model.Alert, error) {
	session := s.session.Copy()
	defer session.Close()

	query := bson.M{}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	if filter.AttackType != "" {
		query["attack_type"] = filter.AttackType
	}
	if filter.SourceIP != "" {
		query["source_ip"] = filter.SourceIP
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var alerts []model.Alert
	err := session.DB(s.database).C(alertCollection).
		Find(query).Sort("-timestamp").Limit(limit).All(&alerts)
	if err != nil {
		return nil, fmt.Errorf("%w: query alerts: %v", ErrStoreUnavailable, err)
	}
	return alerts, nil
}

func (s *MongoStore) AlertByID(id string) (*model.Alert, error) {
	session := s.session.Copy()
	defer session.Close()

	var alert model.Alert
	err := session.DB(s.database).C(alertCollection).FindId(id).One(&alert)
	if err == mgo.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find alert %s: %v", ErrStoreUnavailable, id, err)
	}
	return &alert, nil
}

func (s *MongoStore) InsertTrafficStats(stats model.TrafficStats) error {
	session := s.session.Copy()
	defer session.Close()

	if err := session.DB(s.database).C(statsCollection).Insert(stats); err != nil {
		return fmt.Errorf("%w: insert traffic stats: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) LatestTrafficStats() (*model.TrafficStats, error) {
	session := s.session.Copy()
	defer session.Close()

	var stats model.TrafficStats
	err := session.DB(s.database).C(statsCollection).
		Find(nil).Sort("-timestamp").One(&stats)
	if err == mgo.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest traffic stats: %v", ErrStoreUnavailable, err)
	}
	return &stats, nil
}

func (s *MongoStore) TrafficStats(limit int) ([]model.TrafficStats, error) {
	session := s.session.Copy()
	defer session.Close()

	if limit <= 0 {
		limit = 50
	}
	var stats []model.TrafficStats
	err := session.DB(s.database).C(statsCollection).
		Find(nil).Sort("-timestamp").Limit(limit).All(&stats)
	if err != nil {
		return nil, fmt.Errorf("%w: query traffic stats: %v", ErrStoreUnavailable, err)
	}
	return stats, nil
}

func (s *MongoStore) InsertBlockedIP(block model.BlockedIP) error {
	session := s.session.Copy()
	defer session.Close()

	coll := session.DB(s.database).C(blockedCollection)
	if block.IsActive {
		n, err := coll.Find(bson.M{"ip_address": block.IPAddress, "is_active": true}).Count()
		if err != nil {
			return fmt.Errorf("%w: check active block: %v", ErrStoreUnavailable, err)
		}
		if n > 0 {
			return ErrDuplicateBlock
		}
	}
	if err := coll.Insert(block); err != nil {
		return fmt.Errorf("%w: insert block: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) BlockedIPs(activeOnly bool) ([]model.BlockedIP, error) {
	session := s.session.Copy()
	defer session.Close()

	query := bson.M{}
	if activeOnly {
		query["is_active"] = true
	}
	var blocked []model.BlockedIP
	err := session.DB(s.database).C(blockedCollection).
		Find(query).Sort("-blocked_at").All(&blocked)
	if err != nil {
		return nil, fmt.Errorf("%w: query blocked ips: %v", ErrStoreUnavailable, err)
	}
	return blocked, nil
}

func (s *MongoStore) Unblock(id string, at time.Time) error {
	session := s.session.Copy()
	defer session.Close()

	err := session.DB(s.database).C(blockedCollection).Update(
		bson.M{"_id": id, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "unblock_at": at}},
	)
	if err == mgo.ErrNotFound {
		// Already inactive or unknown; the memory store decides which.
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: unblock %s: %v", ErrStoreUnavailable, id, err)
	}
	return nil
}
