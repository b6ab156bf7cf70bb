package analytics

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Summary is the derived statistics over the recent snapshot series
type Summary struct {
	Count        int        `json:"count"`
	Latest       int64      `json:"latest"`
	Mean         float64    `json:"mean"`
	StdDev       float64    `json:"std_dev"`
	Min          int64      `json:"min"`
	Max          int64      `json:"max"`
	MaxDrawdown  float64    `json:"max_drawdown"`
	GrowthRate   float64    `json:"growth_rate"`
	SlotAverages [3]float64 `json:"slot_averages"`
}

// Service computes summary statistics over the snapshot series
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates the analytics service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "analytics").Logger(),
	}
}

// Summarize computes statistics over the most recent window of snapshots.
// An empty series yields a zero summary rather than an error.
func (s *Service) Summarize(window int) (Summary, error) {
	snapshots, err := s.repo.Recent(window)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load snapshot series: %w", err)
	}
	return summarize(snapshots), nil
}

func summarize(snapshots []Snapshot) Summary {
	out := Summary{Count: len(snapshots)}
	if len(snapshots) == 0 {
		return out
	}

	totals := make([]float64, len(snapshots))
	var slotSums [3]float64
	out.Min = snapshots[0].TotalValue
	out.Max = snapshots[0].TotalValue

	for i, snap := range snapshots {
		totals[i] = float64(snap.TotalValue)
		slotSums[0] += float64(snap.OptionsValue)
		slotSums[1] += float64(snap.LPValue)
		slotSums[2] += float64(snap.StakingValue)
		if snap.TotalValue < out.Min {
			out.Min = snap.TotalValue
		}
		if snap.TotalValue > out.Max {
			out.Max = snap.TotalValue
		}
	}

	out.Latest = snapshots[len(snapshots)-1].TotalValue
	out.Mean = stat.Mean(totals, nil)
	if len(totals) > 1 {
		out.StdDev = math.Sqrt(stat.Variance(totals, nil))
	}
	for i := range slotSums {
		out.SlotAverages[i] = slotSums[i] / float64(len(snapshots))
	}
	out.MaxDrawdown = maxDrawdown(totals)

	first := totals[0]
	if first > 0 {
		out.GrowthRate = (totals[len(totals)-1] - first) / first
	}

	return out
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction of
// the peak. Zero for monotonically rising series.
func maxDrawdown(series []float64) float64 {
	var peak, worst float64
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
