package models

import "sort"

// BoxDistribution summarizes boxes-per-image across a split.
type BoxDistribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// SplitStats contains aggregate statistics about a loaded split.
type SplitStats struct {
	TotalImages   int             `json:"total_images"`
	TotalBBoxes   int             `json:"total_bboxes"`
	PerStatus     map[string]int  `json:"per_status"`
	PerCondition  map[string]int  `json:"per_condition"`
	PerTooth      map[int]int     `json:"per_tooth"`
	BoxesPerImage BoxDistribution `json:"boxes_per_image"`
}

// ComputeStats aggregates statistics over the given records in a single pass.
func ComputeStats(records []*ImageRecord) SplitStats {
	stats := SplitStats{
		PerStatus:    make(map[string]int),
		PerCondition: make(map[string]int),
		PerTooth:     make(map[int]int),
	}

	counts := make([]int, 0, len(records))
	for _, rec := range records {
		stats.TotalImages++
		stats.PerStatus[string(rec.Status)]++
		counts = append(counts, len(rec.Teeth))

		for i := range rec.Teeth {
			ann := &rec.Teeth[i]
			stats.TotalBBoxes++
			stats.PerTooth[ann.ToothID]++
			for name, positive := range ann.Conditions {
				if positive {
					stats.PerCondition[name]++
				}
			}
		}
	}

	stats.BoxesPerImage = Distribution(counts)
	return stats
}

// Distribution computes mean/median/min/max of boxes-per-image counts.
func Distribution(counts []int) BoxDistribution {
	if len(counts) == 0 {
		return BoxDistribution{}
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, c := range sorted {
		sum += c
	}

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2
	} else {
		median = float64(sorted[mid])
	}

	return BoxDistribution{
		Mean:   float64(sum) / float64(len(sorted)),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

// LoadWarning records one annotation file skipped during a lenient load.
type LoadWarning struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// LoadReport summarizes the outcome of a load: what was kept, what was
// skipped and why. Always obtainable after a lenient load.
type LoadReport struct {
	Split    string        `json:"split"`
	Loaded   int           `json:"loaded"`
	Skipped  int           `json:"skipped"`
	Complete bool          `json:"complete"`
	Warnings []LoadWarning `json:"warnings,omitempty"`
}
