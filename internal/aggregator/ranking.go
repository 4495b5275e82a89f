package aggregator

import (
	"sort"

	"netshield-detector/internal/model"
)

const (
	// DefaultTopSources is the ranking cut for per-source-IP offenders.
	DefaultTopSources = 10
	// DefaultTopTypes is the ranking cut for attack families.
	DefaultTopTypes = 5
)

// IPCount is one row of the top-offenders ranking.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// TypeCount is one row of the attack-family ranking.
type TypeCount struct {
	Type  model.AttackType `json:"type"`
	Count int              `json:"count"`
}

// RankBySourceIP counts alerts per source IP and returns the top k,
// descending by count. Ties break by first-seen order in the input, so the
// ranking is stable for a fixed alert window. Counts beyond the cut are
// dropped, not folded into a remainder row.
func RankBySourceIP(alerts []model.Alert, k int) []IPCount {
	if k <= 0 {
		k = DefaultTopSources
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, a := range alerts {
		if _, ok := counts[a.SourceIP]; !ok {
			firstSeen[a.SourceIP] = i
		}
		counts[a.SourceIP]++
	}

	ranked := make([]IPCount, 0, len(counts))
	for ip, n := range counts {
		ranked = append(ranked, IPCount{IP: ip, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].IP] < firstSeen[ranked[j].IP]
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// RankByAttackType counts alerts per attack family and returns the top k
// with the same ordering rule as RankBySourceIP.
func RankByAttackType(alerts []model.Alert, k int) []TypeCount {
	if k <= 0 {
		k = DefaultTopTypes
	}

	counts := make(map[model.AttackType]int)
	firstSeen := make(map[model.AttackType]int)
	for i, a := range alerts {
		if _, ok := counts[a.AttackType]; !ok {
			firstSeen[a.AttackType] = i
		}
		counts[a.AttackType]++
	}

	ranked := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		ranked = append(ranked, TypeCount{Type: t, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].Type] < firstSeen[ranked[j].Type]
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
