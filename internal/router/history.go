package router

import "ceopilot/internal/types"

// TierStats aggregates historical outcomes for one tier. The router treats
// outcome history as read-only statistical input.
type TierStats struct {
	Count      int
	QualitySum float64
	Passed     int
	CostSum    int
}

// AvgQuality returns the mean quality score, 0 with no samples.
func (s TierStats) AvgQuality() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.QualitySum / float64(s.Count)
}

// PassRate returns the fraction of outcomes that passed evaluation.
func (s TierStats) PassRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Count)
}

// AvgCostCents returns the mean recorded cost, 0 with no samples.
func (s TierStats) AvgCostCents() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.CostSum) / float64(s.Count)
}

// aggregateByTier folds outcome records into per-tier statistics.
func aggregateByTier(records []types.TaskOutcomeRecord) map[types.ModelTier]TierStats {
	stats := make(map[types.ModelTier]TierStats)
	for _, rec := range records {
		s := stats[rec.ModelTier]
		s.Count++
		s.QualitySum += rec.QualityScore
		s.CostSum += rec.CostCents
		if rec.EvaluationPassed {
			s.Passed++
		}
		stats[rec.ModelTier] = s
	}
	return stats
}
