package scorecard

import (
	"math"
	"testing"
	"time"

	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
)

const testConfig = `
metadata:
  version: "1.0"
column_mappings:
  number: Number
kpis:
  SM001:
    name: Major Incidents
    calculation: {method: priority_count}
  SM002:
    name: Backlog
    calculation: {method: servicenow_backlog}
  SM003:
    name: Request Aging
    calculation: {method: request_aging}
  SM004:
    name: First Time Fix
    calculation: {method: zero_reassignments}
  GEOGRAPHIC:
    name: Geographic
    calculation: {method: country_distribution}
`

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testConfigTree(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func results(sm003 kpi.Result) map[string]kpi.Result {
	return map[string]kpi.Result{
		"SM001":      {Status: kpi.StatusTargetMet},
		"SM002":      {Status: kpi.StatusTargetMet, Metrics: map[string]interface{}{"adherence_rate": 92.0}},
		"SM003":      sm003,
		"SM004":      {Status: kpi.StatusBelowTarget, Metrics: map[string]interface{}{"ftf_rate": 70.0}},
		"GEOGRAPHIC": {Status: kpi.StatusAvailable},
	}
}

func TestAggregateWithoutOptional(t *testing.T) {
	sc := Aggregate(testConfigTree(t), results(kpi.Result{Status: kpi.StatusDisabled}), now)
	if sc.OptionalKPIEnabled {
		t.Fatalf("disabled aging KPI must select the reduced weight set")
	}
	if sc.OverallScore != 88.5 || sc.PerformanceBand != BandGood {
		t.Fatalf("unexpected score %v (%s)", sc.OverallScore, sc.PerformanceBand)
	}
	if _, ok := sc.KPIScores["SM003"]; ok {
		t.Fatalf("SM003 must not be weighted when disabled")
	}
	if _, ok := sc.KPIScores["GEOGRAPHIC"]; ok {
		t.Fatalf("informational KPIs carry no weight")
	}
	if got := config.Sum(sc.WeightsUsed); math.Abs(got-100) > 0.001 {
		t.Fatalf("weights must sum to 100, got %v", got)
	}
}

func TestAggregateWithOptional(t *testing.T) {
	sm003 := kpi.Result{Status: kpi.StatusTargetMet, Metrics: map[string]interface{}{"adherence_rate": 80.0}}
	sc := Aggregate(testConfigTree(t), results(sm003), now)
	if !sc.OptionalKPIEnabled {
		t.Fatalf("aging KPI with data must select the full weight set")
	}
	if sc.OverallScore != 88.8 {
		t.Fatalf("unexpected score %v", sc.OverallScore)
	}
	if got := config.Sum(sc.WeightsUsed); math.Abs(got-100) > 0.001 {
		t.Fatalf("weights must sum to 100, got %v", got)
	}
	if s := sc.KPIScores["SM004"]; s.Score != 70 || s.Weight != 10 || s.WeightedScore != 7 {
		t.Fatalf("unexpected SM004 score %+v", s)
	}
}

func TestAggregateSkipsMissing(t *testing.T) {
	sc := Aggregate(testConfigTree(t), map[string]kpi.Result{"SM001": {Status: kpi.StatusCritical}}, now)
	if sc.OverallScore != 0 || sc.PerformanceBand != BandPoor {
		t.Fatalf("unexpected scorecard %+v", sc)
	}
	if len(sc.KPIScores) != 1 {
		t.Fatalf("only present KPIs are scored, got %v", sc.KPIScores)
	}
}

func TestScore(t *testing.T) {
	cfg := testConfigTree(t)
	tests := []struct {
		name   string
		method string
		res    kpi.Result
		want   float64
	}{
		{"major met", config.MethodPriorityCount, kpi.Result{Status: kpi.StatusTargetMet}, 100},
		{"major above", config.MethodPriorityCount, kpi.Result{Status: kpi.StatusAboveTarget}, 50},
		{"major critical", config.MethodPriorityCount, kpi.Result{Status: kpi.StatusCritical}, 0},
		{"backlog clamped", config.MethodBacklog, kpi.Result{Metrics: map[string]interface{}{"adherence_rate": 140}}, 100},
		{"aging disabled", config.MethodRequestAging, kpi.Result{Status: kpi.StatusDisabled}, 100},
		{"aging no data", config.MethodRequestAging, kpi.Result{Status: kpi.StatusNoData}, 100},
		{"ftf decoded json", config.MethodZeroReassignments, kpi.Result{Metrics: map[string]interface{}{"ftf_rate": float64(65.5)}}, 65.5},
		{"ftf missing metric", config.MethodZeroReassignments, kpi.Result{}, 0},
		{"other partial", "custom", kpi.Result{Status: kpi.StatusBelowTarget}, 60},
		{"other met", "custom", kpi.Result{Status: kpi.StatusTargetMet}, 100},
		{"other critical", "custom", kpi.Result{Status: kpi.StatusCritical}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(cfg, tt.method, tt.res); got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBand(t *testing.T) {
	b := config.Bands{Excellent: 90, Good: 80, NeedsImprovement: 60}
	tests := map[float64]string{95: BandExcellent, 90: BandExcellent, 85: BandGood, 60: BandNeedsImprovement, 59.9: BandPoor}
	for score, want := range tests {
		if got := Band(b, score); got != want {
			t.Errorf("Band(%v) = %s, want %s", score, got, want)
		}
	}
}
