// Package scorecard combines KPI results into a weighted overall score.
package scorecard

import (
	"sort"
	"time"

	"github.com/spf13/cast"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
)

const (
	BandExcellent        = "Excellent"
	BandGood             = "Good"
	BandNeedsImprovement = "Needs Improvement"
	BandPoor             = "Poor"
)

// KPIScore is the contribution of one KPI to the overall score.
type KPIScore struct {
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
	Status        string  `json:"status"`
}

// Scorecard is the aggregated result. WeightsUsed is in percent.
type Scorecard struct {
	OverallScore         float64             `json:"overall_score"`
	PerformanceBand      string              `json:"performance_band"`
	KPIScores            map[string]KPIScore `json:"kpi_scores"`
	WeightsUsed          map[string]float64  `json:"weights_used"`
	OptionalKPI          string              `json:"optional_kpi"`
	OptionalKPIEnabled   bool                `json:"optional_kpi_enabled"`
	CalculationTimestamp string              `json:"calculation_timestamp"`
}

// Aggregate scores results with the weight set selected by the availability
// of the optional aging KPI. Weighted KPIs absent from results are skipped.
func Aggregate(cfg *config.Config, results map[string]kpi.Result, now time.Time) Scorecard {
	sets := cfg.WeightSets()
	opt, ok := results[sets.OptionalKPI]
	optEnabled := ok && opt.HasData()

	weights := sets.WithoutOptional
	if optEnabled {
		weights = sets.WithOptional
	}

	sc := Scorecard{
		KPIScores:            make(map[string]KPIScore),
		WeightsUsed:          make(map[string]float64, len(weights)),
		OptionalKPI:          sets.OptionalKPI,
		OptionalKPIEnabled:   optEnabled,
		CalculationTimestamp: now.UTC().Format(time.RFC3339),
	}

	ids := make([]string, 0, len(weights))
	for id, w := range weights {
		sc.WeightsUsed[id] = w
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var total float64
	for _, id := range ids {
		res, ok := results[id]
		if !ok {
			continue
		}
		w := weights[id]
		score := Score(cfg, method(cfg, id), res)
		weighted := score * w / 100
		sc.KPIScores[id] = KPIScore{Score: score, Weight: w, WeightedScore: weighted, Status: status(res)}
		total += weighted
	}

	sc.OverallScore = kpi.Round1(total)
	sc.PerformanceBand = Band(cfg.Bands(), sc.OverallScore)
	return sc
}

// Score maps one KPI result to [0,100] by the scoring rule of its method.
func Score(cfg *config.Config, method string, res kpi.Result) float64 {
	switch method {
	case config.MethodPriorityCount:
		switch res.Status {
		case kpi.StatusTargetMet:
			return 100
		case kpi.StatusAboveTarget:
			return cfg.AboveTargetScore()
		default:
			return 0
		}
	case config.MethodBacklog:
		return clamp(metric(res, "adherence_rate"))
	case config.MethodRequestAging:
		if res.Status == kpi.StatusDisabled || res.Status == kpi.StatusNoData {
			return 100
		}
		return clamp(metric(res, "adherence_rate"))
	case config.MethodZeroReassignments:
		return clamp(metric(res, "ftf_rate"))
	default:
		switch res.Status {
		case kpi.StatusTargetMet:
			return 100
		case kpi.StatusAboveTarget, kpi.StatusBelowTarget:
			return cfg.PartialScore()
		default:
			return 0
		}
	}
}

// Band maps an overall score to its performance band.
func Band(b config.Bands, score float64) string {
	switch {
	case score >= b.Excellent:
		return BandExcellent
	case score >= b.Good:
		return BandGood
	case score >= b.NeedsImprovement:
		return BandNeedsImprovement
	default:
		return BandPoor
	}
}

func method(cfg *config.Config, id string) string {
	if k, ok := cfg.KPIs[id]; ok {
		return k.Calculation.Method
	}
	return ""
}

func metric(res kpi.Result, key string) float64 {
	v, ok := res.Metrics[key]
	if !ok {
		return 0
	}
	return cast.ToFloat64(v)
}

func status(res kpi.Result) string {
	if res.Status == "" {
		return "Unknown"
	}
	return res.Status
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return f
}
