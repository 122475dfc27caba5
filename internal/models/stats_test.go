package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	records := []*ImageRecord{
		{
			ImageID: "000001",
			Status:  StatusDentate,
			Teeth: []AnnotationRecord{
				{ToothID: 11, Conditions: map[string]bool{"caries": true, "crown": false}, Radiologist: RadiologistConsensus},
				{ToothID: 12, Conditions: map[string]bool{"caries": true}, Radiologist: RadiologistConsensus},
			},
		},
		{
			ImageID: "000002",
			Status:  StatusEdentulous,
		},
		{
			ImageID: "000003",
			Status:  StatusDentate,
			Teeth: []AnnotationRecord{
				{ToothID: 11, Conditions: map[string]bool{"crown": true}, Radiologist: RadiologistR1},
			},
		},
	}

	stats := ComputeStats(records)

	require.Equal(t, 3, stats.TotalImages)
	require.Equal(t, 3, stats.TotalBBoxes)
	require.Equal(t, map[string]int{"dentate": 2, "edentulous": 1}, stats.PerStatus)
	require.Equal(t, map[string]int{"caries": 2, "crown": 1}, stats.PerCondition)
	require.Equal(t, map[int]int{11: 2, 12: 1}, stats.PerTooth)
	require.Equal(t, BoxDistribution{Mean: 1, Median: 1, Min: 0, Max: 2}, stats.BoxesPerImage)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)
	require.Equal(t, 0, stats.TotalImages)
	require.Equal(t, 0, stats.TotalBBoxes)
	require.Equal(t, BoxDistribution{}, stats.BoxesPerImage)
}

func TestDistribution(t *testing.T) {
	require.Equal(t, BoxDistribution{Mean: 2, Median: 2, Min: 1, Max: 3}, Distribution([]int{3, 1, 2}))
	require.Equal(t, BoxDistribution{Mean: 2.5, Median: 2.5, Min: 1, Max: 4}, Distribution([]int{4, 1, 2, 3}))
	require.Equal(t, BoxDistribution{Mean: 5, Median: 5, Min: 5, Max: 5}, Distribution([]int{5}))
}
