package counts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/normalize"
	"github.com/sw33tLie/kpiscope/pkg/records"
)

// Canonical field names consulted by the counter and the calculators.
const (
	FieldNumber       = "number"
	FieldPriority     = "priority"
	FieldReassignment = "reassignment_count"
	FieldOpenedAt     = "opened_at"
	FieldResolvedAt   = "resolved_at"
	FieldCountry      = "country"
)

// Rules carries the normalizers and thresholds derived from a configuration,
// evaluated against a fixed reference time.
type Rules struct {
	Priority         *normalize.PriorityExtractor
	Dates            *normalize.DateParser
	MajorLevels      []int
	BacklogDays      int
	Aging            map[string]int
	ReassignmentNull float64
	Now              time.Time
}

// NewRules builds the counting rules of cfg. now is the reference time for
// ages of unresolved records.
func NewRules(cfg *config.Config, now time.Time) (*Rules, error) {
	p, err := normalize.NewPriorityExtractor(cfg.PriorityPattern(), cfg.PriorityFallback())
	if err != nil {
		return nil, err
	}
	d, err := normalize.NewDateParser(cfg.Processing.DateParsing.Formats)
	if err != nil {
		return nil, err
	}
	return &Rules{
		Priority:         p,
		Dates:            d,
		MajorLevels:      cfg.MajorLevels(),
		BacklogDays:      cfg.BacklogDays(),
		Aging:            cfg.AgingThresholds(),
		ReassignmentNull: cfg.ReassignmentNullValue(),
		Now:              now,
	}, nil
}

// PriorityKey is the counts key of a major priority level.
func PriorityKey(level int) string {
	return fmt.Sprintf("priority_%d_tickets", level)
}

// PriorityOf returns the numeric priority of row i.
func (r *Rules) PriorityOf(rs *records.RecordSet, i int) float64 {
	v, _ := rs.Value(i, FieldPriority)
	return r.Priority.Extract(v)
}

// IsZeroReassignment reports whether row i was fixed without reassignment.
// Non-numeric counts are never zero.
func (r *Rules) IsZeroReassignment(rs *records.RecordSet, i int) bool {
	v, ok := rs.Value(i, FieldReassignment)
	n, valid := normalize.Number(v, ok, r.ReassignmentNull)
	return valid && n == 0
}

// IsBacklog reports whether row i is backlog: resolved records whose
// resolution took longer than the threshold, or unresolved records older than
// it. Records without a parseable open date are never backlog.
func (r *Rules) IsBacklog(rs *records.RecordSet, i int) bool {
	opened, ok := r.date(rs, i, FieldOpenedAt)
	if !ok {
		return false
	}
	if resolved, ok := r.date(rs, i, FieldResolvedAt); ok {
		return normalize.WholeDays(opened, resolved) > r.BacklogDays
	}
	return normalize.WholeDays(opened, r.Now) > r.BacklogDays
}

// Age returns the whole days since row i was opened.
func (r *Rules) Age(rs *records.RecordSet, i int) (int, bool) {
	opened, ok := r.date(rs, i, FieldOpenedAt)
	if !ok {
		return 0, false
	}
	return normalize.WholeDays(opened, r.Now), true
}

// IsResolved reports whether row i has a parseable resolution date.
func (r *Rules) IsResolved(rs *records.RecordSet, i int) bool {
	_, ok := r.date(rs, i, FieldResolvedAt)
	return ok
}

func (r *Rules) date(rs *records.RecordSet, i int, field string) (time.Time, bool) {
	v, ok := rs.Value(i, field)
	if !ok {
		return time.Time{}, false
	}
	return r.Dates.Parse(v)
}

// agingKeys maps counts keys to their day thresholds for every
// thresholds.aging entry named <name>_days.
func (r *Rules) agingKeys() map[string]int {
	out := make(map[string]int)
	for name, days := range r.Aging {
		if strings.HasSuffix(name, "_days") {
			out["incidents_"+strings.TrimSuffix(name, "_days")] = days
		}
	}
	return out
}

// Countries returns the per-country record counts, skipping null countries.
func Countries(rs *records.RecordSet) map[string]int {
	out := make(map[string]int)
	for i := 0; i < rs.Len(); i++ {
		if c, ok := rs.Value(i, FieldCountry); ok {
			out[strings.TrimSpace(c)]++
		}
	}
	return out
}

func sortedLevels(levels []int) []int {
	out := append([]int(nil), levels...)
	sort.Ints(out)
	return out
}
