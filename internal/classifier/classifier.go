package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"netshield-detector/internal/model"

	"github.com/sirupsen/logrus"
)

// ErrInvalidInput marks a feature vector that failed schema validation.
var ErrInvalidInput = errors.New("invalid input")

// Classifier maps a feature vector to a verdict. The rule ensemble below is
// a stand-in; a trained-model backend can be dropped in behind this
// interface without touching the aggregator or pipeline.
type Classifier interface {
	Classify(features *model.FeatureVector) (model.Verdict, error)
}

// Config holds the thresholds of the rule ensemble. Zero values are
// replaced with defaults by Validate.
type Config struct {
	MaliciousThreshold float64 `yaml:"malicious_threshold"`
	// Perturbation scales the random jitter added to every score. Zero
	// selects the 0.05 default; a negative value disables jitter entirely.
	Perturbation float64 `yaml:"perturbation"`

	VolumeCountThreshold   float64 `yaml:"volume_count_threshold"`
	VolumeBytesThreshold   float64 `yaml:"volume_bytes_threshold"`
	DiversityHostThreshold float64 `yaml:"diversity_host_threshold"`
	DiversitySameSrvRate   float64 `yaml:"diversity_same_srv_rate"`
	FailedLoginThreshold   int     `yaml:"failed_login_threshold"`
}

// Validate fills unset thresholds with their defaults.
func (c *Config) Validate() {
	if c.MaliciousThreshold <= 0 {
		c.MaliciousThreshold = 0.4
	}
	// Negative disables jitter, zero means "use the default".
	if c.Perturbation < 0 {
		c.Perturbation = 0
	} else if c.Perturbation == 0 {
		c.Perturbation = 0.05
	}
	if c.VolumeCountThreshold <= 0 {
		c.VolumeCountThreshold = 500
	}
	if c.VolumeBytesThreshold <= 0 {
		c.VolumeBytesThreshold = 10000
	}
	if c.DiversityHostThreshold <= 0 {
		c.DiversityHostThreshold = 100
	}
	if c.DiversitySameSrvRate <= 0 {
		c.DiversitySameSrvRate = 0.1
	}
	if c.FailedLoginThreshold <= 0 {
		c.FailedLoginThreshold = 3
	}
}

// RuleClassifier scores a vector with a fixed-order threshold-rule
// ensemble. Increments accumulate additively; the last firing rule wins the
// attack-family proposal.
type RuleClassifier struct {
	config Config
	rules  []rule
	random func() float64
	logger *logrus.Logger
}

// NewRuleClassifier builds the ensemble from config. The random source
// defaults to math/rand; swap it with SetRandom for deterministic tests.
func NewRuleClassifier(config Config, logger *logrus.Logger) *RuleClassifier {
	config.Validate()
	return &RuleClassifier{
		config: config,
		rules: []rule{
			&volumeRule{countThreshold: config.VolumeCountThreshold, bytesThreshold: config.VolumeBytesThreshold},
			&serviceDiversityRule{hostThreshold: config.DiversityHostThreshold, sameSrvRate: config.DiversitySameSrvRate},
			&authenticationRule{failedLoginThreshold: config.FailedLoginThreshold},
			&privilegeRule{},
		},
		random: rand.Float64,
		logger: logger,
	}
}

// SetRandom replaces the perturbation source. The source must return values
// in [0, 1).
func (c *RuleClassifier) SetRandom(random func() float64) {
	c.random = random
}

// Classify evaluates every rule against the vector and derives the verdict
// from the accumulated suspicion score.
func (c *RuleClassifier) Classify(features *model.FeatureVector) (model.Verdict, error) {
	if features == nil {
		return model.Verdict{}, fmt.Errorf("%w: missing feature vector", ErrInvalidInput)
	}
	if err := features.Validate(); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var score float64
	family := model.AttackNormal
	proposed := model.SeverityLow

	for _, r := range c.rules {
		p, fired := r.Evaluate(features)
		if !fired {
			continue
		}
		score += p.Increment
		family = p.Family
		proposed = p.Severity
		c.logger.Debugf("[Classifier] Rule %s fired: +%.2f (%s)", r.Name(), p.Increment, p.Family)
	}

	score += c.random() * c.config.Perturbation

	confidence := math.Min(score, 1.0)
	if score <= c.config.MaliciousThreshold {
		return model.Verdict{
			IsMalicious: false,
			AttackType:  model.AttackNormal,
			Severity:    model.SeverityLow,
			Confidence:  confidence,
		}, nil
	}

	return model.Verdict{
		IsMalicious: true,
		AttackType:  family,
		Severity:    severityForScore(score).Max(proposed),
		Confidence:  confidence,
	}, nil
}

// Rules describes the ensemble for the dashboard's rules page.
func (c *RuleClassifier) Rules() []model.DetectionRule {
	rules := make([]model.DetectionRule, 0, len(c.rules))
	for _, r := range c.rules {
		rules = append(rules, r.Describe())
	}
	return rules
}

// severityForScore bands the final suspicion score. The winning rule's
// proposed severity can only raise the band, never lower it.
func severityForScore(score float64) model.Severity {
	switch {
	case score > 0.8:
		return model.SeverityCritical
	case score > 0.6:
		return model.SeverityHigh
	case score >= 0.5:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
