package config

import (
	"sort"
	"strings"

	"github.com/spf13/cast"
)

const (
	weightPrefix          = "weight_"
	disabledWeightsSuffix = "_disabled_weights"
)

// Calculation methods understood by the engine.
const (
	MethodPriorityCount       = "priority_count"
	MethodBacklog             = "servicenow_backlog"
	MethodRequestAging        = "request_aging"
	MethodZeroReassignments   = "zero_reassignments"
	MethodCountryDistribution = "country_distribution"
)

var (
	defaultWeightsWithOptional    = map[string]float64{"SM001": 25, "SM002": 40, "SM003": 25, "SM004": 10}
	defaultWeightsWithoutOptional = map[string]float64{"SM001": 25, "SM002": 50, "SM004": 25}
)

// WeightSets carries the two scorecard weight sets, in percent.
type WeightSets struct {
	// OptionalKPI is the KPI whose data availability selects the weight set.
	OptionalKPI string
	// WithOptional applies when the optional KPI produced real data.
	WithOptional map[string]float64
	// WithoutOptional applies otherwise.
	WithoutOptional map[string]float64
}

// Bands are the lower bounds of the performance bands.
type Bands struct {
	Excellent        float64
	Good             float64
	NeedsImprovement float64
}

// WeightSets derives the scorecard weight sets from global_status_rules.scorecard_scoring.
// Keys of the form weight_<kpi> form the primary set and a nested
// <kpi>_disabled_weights map forms the set used when that KPI has no data.
// Configured weights are merged over the defaults, so a KPI without a
// configured weight keeps its default one.
func (c *Config) WeightSets() WeightSets {
	scoring := c.GlobalStatusRules.ScorecardScoring
	ws := WeightSets{
		OptionalKPI:     c.optionalKPI(),
		WithOptional:    copyWeights(defaultWeightsWithOptional),
		WithoutOptional: copyWeights(defaultWeightsWithoutOptional),
	}

	for key, v := range scoring {
		if strings.HasSuffix(key, disabledWeightsSuffix) {
			ws.OptionalKPI = c.resolveID(strings.TrimSuffix(key, disabledWeightsSuffix))
			nested, err := cast.ToStringMapE(v)
			if err != nil {
				continue
			}
			for id, w := range c.parseWeights(nested) {
				ws.WithoutOptional[id] = w
			}
			continue
		}
		if strings.HasPrefix(key, weightPrefix) {
			if f, err := cast.ToFloat64E(v); err == nil {
				ws.WithOptional[c.resolveID(strings.TrimPrefix(key, weightPrefix))] = f
			}
		}
	}
	return ws
}

// Bands returns the performance band cutoffs.
func (c *Config) Bands() Bands {
	b := c.GlobalStatusRules.PerformanceBands
	return Bands{
		Excellent:        floatOr(b, "excellent", 90),
		Good:             floatOr(b, "good", 80),
		NeedsImprovement: floatOr(b, "needs_improvement", 60),
	}
}

// AboveTargetScore is the scorecard score of a count-based KPI that exceeded
// its targets without being critical.
func (c *Config) AboveTargetScore() float64 {
	return floatOr(c.GlobalStatusRules.ScorecardScoring, "above_target_score", 50)
}

// PartialScore is the scorecard score of an Above/Below Target KPI without a
// dedicated scoring rule.
func (c *Config) PartialScore() float64 {
	return floatOr(c.GlobalStatusRules.ScorecardScoring, "partial_score", 60)
}

func (c *Config) parseWeights(m map[string]interface{}) map[string]float64 {
	out := make(map[string]float64)
	for key, v := range m {
		if !strings.HasPrefix(key, weightPrefix) {
			continue
		}
		if f, err := cast.ToFloat64E(v); err == nil {
			out[c.resolveID(strings.TrimPrefix(key, weightPrefix))] = f
		}
	}
	return out
}

// optionalKPI picks the first KPI, by id, that uses the request aging method.
func (c *Config) optionalKPI() string {
	var ids []string
	for id, k := range c.KPIs {
		if k.Calculation.Method == MethodRequestAging {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "SM003"
	}
	sort.Strings(ids)
	return ids[0]
}

// resolveID maps a lower-cased weight key suffix back to the configured KPI id.
func (c *Config) resolveID(name string) string {
	for id := range c.KPIs {
		if strings.EqualFold(id, name) {
			return id
		}
	}
	return strings.ToUpper(name)
}

// Sum returns the total of a weight set.
func Sum(weights map[string]float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	return total
}

func floatOr(m map[string]interface{}, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

func copyWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
