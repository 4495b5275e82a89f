package classifier

import (
	"fmt"

	"netshield-detector/internal/model"
)

// proposal is what a firing rule contributes to the running verdict.
type proposal struct {
	Increment float64
	Family    model.AttackType
	Severity  model.Severity
}

type rule interface {
	Name() string
	Evaluate(features *model.FeatureVector) (proposal, bool)
	Describe() model.DetectionRule
}

// volumeRule flags flood-style traffic: connection counts or byte volumes
// past a high-water mark.
type volumeRule struct {
	countThreshold float64
	bytesThreshold float64
}

func (r *volumeRule) Name() string { return "volume" }

func (r *volumeRule) Evaluate(f *model.FeatureVector) (proposal, bool) {
	if f.Count > r.countThreshold || f.SrcBytes > r.bytesThreshold {
		return proposal{Increment: 0.3, Family: model.AttackDoS, Severity: model.SeverityHigh}, true
	}
	return proposal{}, false
}

func (r *volumeRule) Describe() model.DetectionRule {
	return model.DetectionRule{
		ID:          r.Name(),
		RuleName:    "Volume flood",
		RulePattern: fmt.Sprintf("count > %.0f or src_bytes > %.0f", r.countThreshold, r.bytesThreshold),
		Severity:    model.SeverityHigh,
		Enabled:     true,
	}
}

// serviceDiversityRule flags hosts spraying many destinations while rarely
// hitting the same service twice, the signature of a scan.
type serviceDiversityRule struct {
	hostThreshold float64
	sameSrvRate   float64
}

func (r *serviceDiversityRule) Name() string { return "service_diversity" }

func (r *serviceDiversityRule) Evaluate(f *model.FeatureVector) (proposal, bool) {
	if f.DstHostCount > r.hostThreshold && f.SameSrvRate < r.sameSrvRate {
		return proposal{Increment: 0.4, Family: model.AttackProbe, Severity: model.SeverityMedium}, true
	}
	return proposal{}, false
}

func (r *serviceDiversityRule) Describe() model.DetectionRule {
	return model.DetectionRule{
		ID:          r.Name(),
		RuleName:    "Service diversity scan",
		RulePattern: fmt.Sprintf("dst_host_count > %.0f and same_srv_rate < %.2f", r.hostThreshold, r.sameSrvRate),
		Severity:    model.SeverityMedium,
		Enabled:     true,
	}
}

// authenticationRule flags credential attacks: repeated failed logins or
// guest-login access.
type authenticationRule struct {
	failedLoginThreshold int
}

func (r *authenticationRule) Name() string { return "authentication" }

func (r *authenticationRule) Evaluate(f *model.FeatureVector) (proposal, bool) {
	if f.NumFailedLogins > r.failedLoginThreshold || f.IsGuestLogin == 1 {
		return proposal{Increment: 0.5, Family: model.AttackR2L, Severity: model.SeverityCritical}, true
	}
	return proposal{}, false
}

func (r *authenticationRule) Describe() model.DetectionRule {
	return model.DetectionRule{
		ID:          r.Name(),
		RuleName:    "Credential attack",
		RulePattern: fmt.Sprintf("num_failed_logins > %d or is_guest_login = 1", r.failedLoginThreshold),
		Severity:    model.SeverityCritical,
		Enabled:     true,
	}
}

// privilegeRule flags privilege escalation: root shells or elevated
// privilege indicators.
type privilegeRule struct{}

func (r *privilegeRule) Name() string { return "privilege" }

func (r *privilegeRule) Evaluate(f *model.FeatureVector) (proposal, bool) {
	if f.NumRoot > 0 || f.RootShell > 0 {
		return proposal{Increment: 0.6, Family: model.AttackU2R, Severity: model.SeverityCritical}, true
	}
	return proposal{}, false
}

func (r *privilegeRule) Describe() model.DetectionRule {
	return model.DetectionRule{
		ID:          r.Name(),
		RuleName:    "Privilege escalation",
		RulePattern: "num_root > 0 or root_shell > 0",
		Severity:    model.SeverityCritical,
		Enabled:     true,
	}
}
