package model

import "time"

// Severity bands an alert or verdict into one of four levels. The string
// values match what the dashboard renders and what the store persists.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Rank orders severities so they can be compared; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the four known bands.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Max returns the more severe of s and other.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// AttackType is the attack family proposed by the classifier.
type AttackType string

const (
	AttackNormal AttackType = "Normal"
	AttackDoS    AttackType = "DoS"
	AttackProbe  AttackType = "Probe"
	AttackR2L    AttackType = "R2L"
	AttackU2R    AttackType = "U2R"
)

// Verdict is the classifier output for a single feature vector. It carries
// no identity; an Alert is minted from it only when IsMalicious is set.
type Verdict struct {
	IsMalicious bool       `json:"is_malicious"`
	AttackType  AttackType `json:"attack_type"`
	Severity    Severity   `json:"severity"`
	Confidence  float64    `json:"confidence"`
}

// Alert is the persisted record of a malicious verdict. Immutable after
// creation.
type Alert struct {
	ID              string         `json:"id" bson:"_id"`
	Timestamp       time.Time      `json:"timestamp" bson:"timestamp"`
	SourceIP        string         `json:"source_ip" bson:"source_ip"`
	DestIP          string         `json:"dest_ip" bson:"dest_ip"`
	AttackType      AttackType     `json:"attack_type" bson:"attack_type"`
	Severity        Severity       `json:"severity" bson:"severity"`
	ConfidenceScore float64        `json:"confidence_score" bson:"confidence_score"`
	PacketData      *FeatureVector `json:"packet_data,omitempty" bson:"packet_data,omitempty"`
}

// TrafficStats is a cumulative counter snapshot. Each observation tick
// appends a new record; consumers read the latest by timestamp.
type TrafficStats struct {
	ID               string    `json:"id" bson:"_id"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
	TotalPackets     int64     `json:"total_packets" bson:"total_packets"`
	NormalPackets    int64     `json:"normal_packets" bson:"normal_packets"`
	MaliciousPackets int64     `json:"malicious_packets" bson:"malicious_packets"`
	BytesTransferred int64     `json:"bytes_transferred" bson:"bytes_transferred"`
}

// BlockedIP records one block lifecycle. A re-block creates a fresh record
// rather than reactivating an old one; the only mutation is the single
// active -> inactive transition performed by an unblock.
type BlockedIP struct {
	ID          string     `json:"id" bson:"_id"`
	IPAddress   string     `json:"ip_address" bson:"ip_address"`
	BlockReason string     `json:"block_reason" bson:"block_reason"`
	BlockedAt   time.Time  `json:"blocked_at" bson:"blocked_at"`
	UnblockAt   *time.Time `json:"unblock_at,omitempty" bson:"unblock_at,omitempty"`
	IsActive    bool       `json:"is_active" bson:"is_active"`
}

// DetectionRule describes one classifier rule as shown on the dashboard's
// rules page.
type DetectionRule struct {
	ID          string   `json:"id"`
	RuleName    string   `json:"rule_name"`
	RulePattern string   `json:"rule_pattern"`
	Severity    Severity `json:"severity"`
	Enabled     bool     `json:"enabled"`
}
