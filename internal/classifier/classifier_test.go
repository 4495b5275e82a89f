package classifier

import (
	"errors"
	"testing"

	"netshield-detector/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier() *RuleClassifier {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cls := NewRuleClassifier(Config{}, logger)
	cls.SetRandom(func() float64 { return 0 })
	return cls
}

func benignVector() *model.FeatureVector {
	return &model.FeatureVector{
		ProtocolType: "tcp",
		Service:      "http",
		Flag:         "SF",
	}
}

func TestClassifyZeroedVectorIsNormal(t *testing.T) {
	cls := newTestClassifier()

	verdict, err := cls.Classify(benignVector())
	require.NoError(t, err)

	assert.False(t, verdict.IsMalicious)
	assert.Equal(t, model.AttackNormal, verdict.AttackType)
	assert.Equal(t, model.SeverityLow, verdict.Severity)
	assert.Equal(t, 0.0, verdict.Confidence)
}

func TestClassifyIsDeterministic(t *testing.T) {
	cls := newTestClassifier()

	f := benignVector()
	f.NumFailedLogins = 5
	f.IsGuestLogin = 1

	first, err := cls.Classify(f)
	require.NoError(t, err)
	second, err := cls.Classify(f)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same vector with a fixed random source must yield identical verdicts")
}

func TestClassifyCredentialAttack(t *testing.T) {
	cls := newTestClassifier()

	f := benignVector()
	f.NumFailedLogins = 5
	f.IsGuestLogin = 1

	verdict, err := cls.Classify(f)
	require.NoError(t, err)

	assert.True(t, verdict.IsMalicious)
	assert.Equal(t, model.AttackR2L, verdict.AttackType)
	assert.Equal(t, model.SeverityCritical, verdict.Severity)
	assert.GreaterOrEqual(t, verdict.Confidence, 0.5)
}

func TestClassifyPrivilegeEscalation(t *testing.T) {
	cls := newTestClassifier()

	f := benignVector()
	f.RootShell = 1
	f.NumRoot = 1

	verdict, err := cls.Classify(f)
	require.NoError(t, err)

	assert.True(t, verdict.IsMalicious)
	assert.Equal(t, model.AttackU2R, verdict.AttackType)
	assert.Equal(t, model.SeverityCritical, verdict.Severity)
	assert.InDelta(t, 0.6, verdict.Confidence, 1e-9)
}

func TestClassifyVolumeAloneStaysBelowThreshold(t *testing.T) {
	// A lone flood signature scores 0.3, under the 0.4 default threshold.
	cls := newTestClassifier()

	f := benignVector()
	f.Count = 600

	verdict, err := cls.Classify(f)
	require.NoError(t, err)

	assert.False(t, verdict.IsMalicious)
	assert.Equal(t, model.AttackNormal, verdict.AttackType)
}

func TestClassifyLastFiringRuleWinsFamily(t *testing.T) {
	cls := newTestClassifier()

	// Volume and diversity both fire; diversity is evaluated later.
	f := benignVector()
	f.Count = 600
	f.DstHostCount = 150
	f.SameSrvRate = 0.05

	verdict, err := cls.Classify(f)
	require.NoError(t, err)

	assert.True(t, verdict.IsMalicious)
	assert.Equal(t, model.AttackProbe, verdict.AttackType)
	// Score 0.7 bands High; the winning rule only proposed Medium.
	assert.Equal(t, model.SeverityHigh, verdict.Severity)
	assert.InDelta(t, 0.7, verdict.Confidence, 1e-9)
}

func TestClassifyConfidenceCappedAtOne(t *testing.T) {
	cls := newTestClassifier()

	f := benignVector()
	f.Count = 600
	f.DstHostCount = 150
	f.SameSrvRate = 0.05
	f.NumFailedLogins = 5
	f.RootShell = 1

	verdict, err := cls.Classify(f)
	require.NoError(t, err)

	assert.True(t, verdict.IsMalicious)
	assert.Equal(t, 1.0, verdict.Confidence)
	assert.Equal(t, model.SeverityCritical, verdict.Severity)
	assert.Equal(t, model.AttackU2R, verdict.AttackType)
}

func TestClassifyPerturbationCannotFlipBenign(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cls := NewRuleClassifier(Config{}, logger)
	cls.SetRandom(func() float64 { return 0.999 })

	verdict, err := cls.Classify(benignVector())
	require.NoError(t, err)

	assert.False(t, verdict.IsMalicious, "max perturbation stays below the malicious threshold")
}

func TestNegativePerturbationDisablesJitter(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cls := NewRuleClassifier(Config{Perturbation: -1}, logger)

	f := benignVector()
	f.NumFailedLogins = 5
	f.IsGuestLogin = 1

	// With jitter off the score is the bare rule sum, even with the
	// default random source.
	for i := 0; i < 5; i++ {
		verdict, err := cls.Classify(f)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, verdict.Confidence, 1e-9)
	}
}

func TestClassifyInvalidInput(t *testing.T) {
	cls := newTestClassifier()

	badProtocol := benignVector()
	badProtocol.ProtocolType = "gre"

	badRate := benignVector()
	badRate.SerrorRate = 1.5

	negativeCount := benignVector()
	negativeCount.Count = -1

	badBinary := benignVector()
	badBinary.IsGuestLogin = 2

	badFlag := benignVector()
	badFlag.Flag = "XYZ"

	cases := []struct {
		name     string
		features *model.FeatureVector
	}{
		{"nil vector", nil},
		{"unknown protocol", badProtocol},
		{"rate out of range", badRate},
		{"negative count", negativeCount},
		{"binary out of range", badBinary},
		{"unknown flag", badFlag},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cls.Classify(tc.features)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "expected ErrInvalidInput, got %v", err)
		})
	}
}

func TestSeverityBands(t *testing.T) {
	cases := []struct {
		score float64
		want  model.Severity
	}{
		{0.45, model.SeverityLow},
		{0.5, model.SeverityMedium},
		{0.6, model.SeverityMedium},
		{0.61, model.SeverityHigh},
		{0.8, model.SeverityHigh},
		{0.81, model.SeverityCritical},
		{1.2, model.SeverityCritical},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, severityForScore(tc.score), "score %.2f", tc.score)
	}
}

func TestRulesDescribeEnsemble(t *testing.T) {
	cls := newTestClassifier()

	rules := cls.Rules()
	require.Len(t, rules, 4)

	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.ID)
		assert.True(t, r.Enabled)
		assert.True(t, r.Severity.Valid())
	}
	assert.Equal(t, []string{"volume", "service_diversity", "authentication", "privilege"}, names)
}
