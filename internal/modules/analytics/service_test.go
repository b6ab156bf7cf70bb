package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func snapshotSeries(totals ...int64) []Snapshot {
	out := make([]Snapshot, len(totals))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, total := range totals {
		out[i] = Snapshot{
			ID:           int64(i + 1),
			TotalValue:   total,
			OptionsValue: total * 40 / 100,
			LPValue:      total * 40 / 100,
			StakingValue: total - 2*(total*40/100),
			TakenAt:      base.Add(time.Duration(i) * 5 * time.Minute),
		}
	}
	return out
}

func TestSummarize_EmptySeries(t *testing.T) {
	s := summarize(nil)

	assert.Equal(t, 0, s.Count)
	assert.Equal(t, int64(0), s.Latest)
	assert.Equal(t, float64(0), s.Mean)
}

func TestSummarize_SingleSnapshot(t *testing.T) {
	s := summarize(snapshotSeries(1000))

	assert.Equal(t, 1, s.Count)
	assert.Equal(t, int64(1000), s.Latest)
	assert.InDelta(t, 1000, s.Mean, 0.001)
	assert.Equal(t, float64(0), s.StdDev)
	assert.Equal(t, int64(1000), s.Min)
	assert.Equal(t, int64(1000), s.Max)
}

func TestSummarize_BasicStatistics(t *testing.T) {
	s := summarize(snapshotSeries(1000, 1100, 1200))

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, int64(1200), s.Latest)
	assert.InDelta(t, 1100, s.Mean, 0.001)
	assert.Equal(t, int64(1000), s.Min)
	assert.Equal(t, int64(1200), s.Max)
	assert.InDelta(t, 100, s.StdDev, 0.001)
	assert.InDelta(t, 0.2, s.GrowthRate, 0.0001)
}

func TestSummarize_MaxDrawdown(t *testing.T) {
	// Peak 1200 falling to 900 is a 25% drawdown
	s := summarize(snapshotSeries(1000, 1200, 900, 1100))

	assert.InDelta(t, 0.25, s.MaxDrawdown, 0.0001)
}

func TestSummarize_MonotonicRiseHasNoDrawdown(t *testing.T) {
	s := summarize(snapshotSeries(100, 200, 300))

	assert.Equal(t, float64(0), s.MaxDrawdown)
}

func TestSummarize_SlotAverages(t *testing.T) {
	s := summarize(snapshotSeries(1000, 1000))

	assert.InDelta(t, 400, s.SlotAverages[0], 0.001)
	assert.InDelta(t, 400, s.SlotAverages[1], 0.001)
	assert.InDelta(t, 200, s.SlotAverages[2], 0.001)
}

func TestMaxDrawdown_RecoversAndFallsDeeper(t *testing.T) {
	dd := maxDrawdown([]float64{100, 80, 120, 60})
	assert.InDelta(t, 0.5, dd, 0.0001)
}
