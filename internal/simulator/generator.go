package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"netshield-detector/internal/model"
)

var attackMix = []model.AttackType{
	model.AttackDoS,
	model.AttackProbe,
	model.AttackR2L,
	model.AttackU2R,
	model.AttackNormal,
}

var maliciousMix = []model.AttackType{
	model.AttackDoS,
	model.AttackProbe,
	model.AttackR2L,
	model.AttackU2R,
}

var severityMix = []model.Severity{
	model.SeverityLow,
	model.SeverityMedium,
	model.SeverityHigh,
	model.SeverityCritical,
}

// Generator produces synthetic traffic: random endpoints, per-family
// feature-vector shapes and demo alert batches. The random source is owned
// by the generator so tests can seed it.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator seeds a generator. seed 0 falls back to the clock.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// RandomIP returns a random dotted-quad address.
func (g *Generator) RandomIP() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		g.rng.Intn(255), g.rng.Intn(255), g.rng.Intn(255), g.rng.Intn(255))
}

// RandomFamily picks an attack family from the demo mix, Normal included.
func (g *Generator) RandomFamily() model.AttackType {
	return attackMix[g.rng.Intn(len(attackMix))]
}

// FeatureVector shapes a valid vector that the rule ensemble will classify
// into the requested family.
func (g *Generator) FeatureVector(family model.AttackType) *model.FeatureVector {
	f := &model.FeatureVector{
		ProtocolType: "tcp",
		Service:      "http",
		Flag:         "SF",
		SameSrvRate:  1,
	}

	switch family {
	case model.AttackDoS:
		f.Count = 600 + float64(g.rng.Intn(400))
		f.SrcBytes = 20000 + float64(g.rng.Intn(50000))
		f.Flag = "S0"
		f.SerrorRate = 1
	case model.AttackProbe:
		f.DstHostCount = 150 + float64(g.rng.Intn(100))
		f.SameSrvRate = 0.05
		f.DiffSrvRate = 0.9
		f.Flag = "REJ"
	case model.AttackR2L:
		f.NumFailedLogins = 4 + g.rng.Intn(4)
		f.IsGuestLogin = 1
		f.Service = "ftp"
	case model.AttackU2R:
		f.RootShell = 1
		f.NumRoot = 1 + g.rng.Intn(3)
		f.Service = "telnet"
		f.LoggedIn = 1
	}

	return f
}

// DemoBatch builds one synthetic traffic-stats snapshot on top of the
// latest counters plus 1-3 synthetic alerts, mirroring what the dashboard's
// demo controls insert. Alert families come from the malicious mix only so
// the batch never comes up empty.
func (g *Generator) DemoBatch(latest *model.TrafficStats) (model.TrafficStats, []model.Alert) {
	count := 1 + g.rng.Intn(3)
	alerts := make([]model.Alert, 0, count)

	for i := 0; i < count; i++ {
		family := maliciousMix[g.rng.Intn(len(maliciousMix))]
		alerts = append(alerts, model.Alert{
			Timestamp:       time.Now(),
			SourceIP:        g.RandomIP(),
			DestIP:          g.RandomIP(),
			AttackType:      family,
			Severity:        severityMix[g.rng.Intn(len(severityMix))],
			ConfidenceScore: g.rng.Float64(),
		})
	}

	var prev model.TrafficStats
	if latest != nil {
		prev = *latest
	}
	stats := model.TrafficStats{
		Timestamp:        time.Now(),
		TotalPackets:     prev.TotalPackets + int64(g.rng.Intn(100)+1),
		NormalPackets:    prev.NormalPackets + int64(g.rng.Intn(50)+1),
		MaliciousPackets: prev.MaliciousPackets + int64(len(alerts)),
		BytesTransferred: prev.BytesTransferred + int64(g.rng.Intn(10000)+1000),
	}

	return stats, alerts
}
