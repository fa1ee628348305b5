package kpi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sw33tLie/kpiscope/pkg/counts"
)

const defaultTopCountries = 5

// CountryCount is one entry of the top countries ranking.
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// geographic reports the country distribution of the record set. It is
// informational and never passes or fails.
func geographic(in Input) (Result, error) {
	name := in.name("Geographic Analysis")
	if !in.Records.HasColumn(counts.FieldCountry) {
		return Result{
			Name:                 name,
			Status:               StatusNoData,
			Reason:               "Country field not available",
			CalculationTimestamp: in.timestamp(),
		}, nil
	}

	calc := in.KPI.Calculation
	limit := calc.TopCountriesLimit
	if limit <= 0 {
		limit = defaultTopCountries
	}

	dist := counts.Countries(in.Records)
	metrics := map[string]interface{}{
		"total_countries":      len(dist),
		"country_distribution": dist,
		"top_countries":        TopCountries(dist, limit),
	}
	if len(in.KPI.AnalysisDimensions) > 0 {
		metrics["analysis_dimensions"] = in.KPI.AnalysisDimensions
	}

	includePriority := calc.IncludePriorityBreakdown == nil || *calc.IncludePriorityBreakdown
	if includePriority && in.Rules != nil && in.Records.HasColumn(counts.FieldPriority) && in.KPI.HasDimension("priority_by_country") {
		metrics["priority_by_country"] = priorityByCountry(in)
	}

	return Result{
		Name:                 name,
		Status:               StatusAvailable,
		BusinessImpact:       in.impact("Low"),
		Metrics:              metrics,
		CalculationTimestamp: in.timestamp(),
	}, nil
}

// TopCountries returns the limit largest entries of dist, by count and then
// by name.
func TopCountries(dist map[string]int, limit int) []CountryCount {
	out := make([]CountryCount, 0, len(dist))
	for c, n := range dist {
		out = append(out, CountryCount{Country: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Country < out[j].Country
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func priorityByCountry(in Input) map[string]map[string]int {
	rs, r := in.Records, in.Rules
	levels := make(map[int]bool)
	for _, l := range r.MajorLevels {
		levels[l] = true
	}

	out := make(map[string]map[string]int)
	for i := 0; i < rs.Len(); i++ {
		c, ok := rs.Value(i, counts.FieldCountry)
		if !ok {
			continue
		}
		c = strings.TrimSpace(c)
		entry, ok := out[c]
		if !ok {
			entry = map[string]int{"total_incidents": 0, "major_incidents": 0}
			for l := range levels {
				entry[fmt.Sprintf("p%d_incidents", l)] = 0
			}
			out[c] = entry
		}
		entry["total_incidents"]++

		p := r.PriorityOf(rs, i)
		for l := range levels {
			if p == float64(l) {
				entry["major_incidents"]++
				entry[fmt.Sprintf("p%d_incidents", l)]++
				break
			}
		}
	}
	return out
}
