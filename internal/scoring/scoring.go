// Package scoring derives zone and overall rollups from raw item scores.
//
// Every function here is pure: no storage, no clock, no randomness. The same
// package runs on the device after each edit and on the server after each
// push, which is what guarantees the two sides never disagree on arithmetic.
//
// An item participates in aggregation only when it has a non-nil score and
// is not marked N/A. An empty qualifying set yields nil, never zero: a zone
// nobody has scored has no average, it is not a zero-scoring zone.
package scoring

import "cpted-sync/internal/domain"

// Counts summarizes scoring progress over a set of items.
type Counts struct {
	Total     int `json:"total"`
	Scored    int `json:"scored"`
	NA        int `json:"na"`
	Addressed int `json:"addressed"`
	Remaining int `json:"remaining"`
}

func qualifies(it domain.ItemScore) bool {
	return it.Score != nil && !it.IsNA
}

// Mean returns the unweighted mean of qualifying item scores, or nil when no
// item qualifies.
func Mean(items []domain.ItemScore) *float64 {
	sum, n := 0, 0
	for _, it := range items {
		if qualifies(it) {
			sum += *it.Score
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := float64(sum) / float64(n)
	return &m
}

// PrincipleMean restricts Mean to items belonging to one principle.
func PrincipleMean(items []domain.ItemScore, principleKey string) *float64 {
	var subset []domain.ItemScore
	for _, it := range items {
		if it.PrincipleKey == principleKey {
			subset = append(subset, it)
		}
	}
	return Mean(subset)
}

// ZoneMean restricts Mean to items belonging to one zone.
func ZoneMean(items []domain.ItemScore, zoneKey string) *float64 {
	return Mean(FilterZone(items, zoneKey))
}

// FilterZone returns the items belonging to zoneKey, in input order.
func FilterZone(items []domain.ItemScore, zoneKey string) []domain.ItemScore {
	var subset []domain.ItemScore
	for _, it := range items {
		if it.ZoneKey == zoneKey {
			subset = append(subset, it)
		}
	}
	return subset
}

// OverallScore is the unweighted mean of per-zone means. Zones whose own
// mean is nil are skipped entirely; they do not drag the overall score down.
// Returns nil when no zone has a mean. The result does not depend on zone
// order.
func OverallScore(items []domain.ItemScore) *float64 {
	seen := make(map[string]bool)
	var zoneKeys []string
	for _, it := range items {
		if !seen[it.ZoneKey] {
			seen[it.ZoneKey] = true
			zoneKeys = append(zoneKeys, it.ZoneKey)
		}
	}

	sum, n := 0.0, 0
	for _, zk := range zoneKeys {
		if m := ZoneMean(items, zk); m != nil {
			sum += *m
			n++
		}
	}
	if n == 0 {
		return nil
	}
	o := sum / float64(n)
	return &o
}

// Completed reports whether the item set is fully addressed: at least one
// item, and every item either scored or marked N/A. An empty set is not
// complete.
func Completed(items []domain.ItemScore) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Score == nil && !it.IsNA {
			return false
		}
	}
	return true
}

// CountsFor tallies scoring progress. NA counts items marked N/A regardless
// of any stored score; Scored counts only qualifying items.
func CountsFor(items []domain.ItemScore) Counts {
	c := Counts{Total: len(items)}
	for _, it := range items {
		switch {
		case it.IsNA:
			c.NA++
		case it.Score != nil:
			c.Scored++
		}
	}
	c.Addressed = c.Scored + c.NA
	c.Remaining = c.Total - c.Addressed
	return c
}

// Recompute applies the aggregation rules to a full assessment snapshot:
// each zone row gets its recomputed average and completion flag, and the
// overall score is returned for the assessment row. Zone rows are updated in
// place by index so callers keep their ordering.
func Recompute(zones []domain.ZoneScore, items []domain.ItemScore) *float64 {
	for i := range zones {
		zoneItems := FilterZone(items, zones[i].ZoneKey)
		zones[i].AverageScore = Mean(zoneItems)
		zones[i].Completed = Completed(zoneItems)
	}
	return OverallScore(items)
}
