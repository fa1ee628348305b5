// Package counts implements the metric counter: the integer tallies every KPI
// calculation method is derived from.
package counts

import (
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/records"
)

const (
	KeyTotal             = "total_tickets"
	KeyZeroReassignments = "zero_reassignments"
	KeyResolved          = "resolved_tickets"
	KeyBacklog           = "servicenow_backlog_total"
	KeyCountries         = "total_countries"
	KeyGeographic        = "geographic_data_available"
)

// Counts maps metric names to integer tallies. Missing keys read as zero.
type Counts map[string]int

// Get returns the tally for key, zero when absent.
func (c Counts) Get(key string) int {
	return c[key]
}

// Clone returns a copy of c.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Overlay returns a copy of c with every key of delta replaced.
func (c Counts) Overlay(delta Counts) Counts {
	out := c.Clone()
	for k, v := range delta {
		out[k] = v
	}
	return out
}

// Compute produces the whole-set counts of a mapped record set. Each metric
// family is produced only when its source columns exist.
func Compute(rs *records.RecordSet, r *Rules) Counts {
	c := Counts{KeyTotal: rs.Len()}
	priorityCounts(c, rs, r)
	if rs.HasColumn(FieldReassignment) {
		c[KeyZeroReassignments] = countWhere(rs, func(i int) bool { return r.IsZeroReassignment(rs, i) })
	}
	if rs.HasColumn(FieldResolvedAt) {
		c[KeyResolved] = countWhere(rs, func(i int) bool { return r.IsResolved(rs, i) })
	}
	if rs.HasColumn(FieldOpenedAt) {
		for key, days := range r.agingKeys() {
			days := days
			c[key] = countWhere(rs, func(i int) bool {
				age, ok := r.Age(rs, i)
				return ok && age > days
			})
		}
		c[KeyBacklog] = countWhere(rs, func(i int) bool { return r.IsBacklog(rs, i) })
	}
	countryCounts(c, rs)
	return c
}

// ForMethod produces total_tickets plus only the keys consumed by method.
func ForMethod(method string, rs *records.RecordSet, r *Rules) Counts {
	c := Counts{KeyTotal: rs.Len()}
	switch method {
	case config.MethodPriorityCount:
		priorityCounts(c, rs, r)
	case config.MethodZeroReassignments:
		if rs.HasColumn(FieldReassignment) {
			c[KeyZeroReassignments] = countWhere(rs, func(i int) bool { return r.IsZeroReassignment(rs, i) })
		}
	case config.MethodBacklog:
		if rs.HasColumn(FieldOpenedAt) {
			c[KeyBacklog] = countWhere(rs, func(i int) bool { return r.IsBacklog(rs, i) })
		}
	case config.MethodCountryDistribution:
		countryCounts(c, rs)
	}
	return c
}

func priorityCounts(c Counts, rs *records.RecordSet, r *Rules) {
	if !rs.HasColumn(FieldPriority) {
		return
	}
	levels := sortedLevels(r.MajorLevels)
	for _, l := range levels {
		c[PriorityKey(l)] = 0
	}
	for i := 0; i < rs.Len(); i++ {
		p := r.PriorityOf(rs, i)
		for _, l := range levels {
			if p == float64(l) {
				c[PriorityKey(l)]++
				break
			}
		}
	}
}

func countryCounts(c Counts, rs *records.RecordSet) {
	if !rs.HasColumn(FieldCountry) {
		c[KeyGeographic] = 0
		return
	}
	c[KeyCountries] = len(Countries(rs))
	c[KeyGeographic] = 1
}

func countWhere(rs *records.RecordSet, pred func(i int) bool) int {
	n := 0
	for i := 0; i < rs.Len(); i++ {
		if pred(i) {
			n++
		}
	}
	return n
}
