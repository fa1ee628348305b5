package processing

import (
	"context"
	"fmt"

	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/sw33tLie/kpiscope/pkg/records"
	"github.com/sw33tLie/kpiscope/pkg/storage"
)

// methodFields are the canonical fields a calculation method reads besides
// the KPI's required fields.
var methodFields = map[string][]string{
	config.MethodPriorityCount:       {counts.FieldPriority},
	config.MethodBacklog:             {counts.FieldOpenedAt, counts.FieldResolvedAt},
	config.MethodZeroReassignments:   {counts.FieldReassignment},
	config.MethodCountryDistribution: {counts.FieldCountry, counts.FieldPriority},
}

// Targeted recomputes a single KPI from the columns it needs and stores the
// result into the existing KPI cache.
func (e *Engine) Targeted(ctx context.Context, rs *records.RecordSet, id string) (*TargetedEnvelope, error) {
	k, ok := e.cfg.KPIs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKPI, id)
	}
	if !k.IsEnabled() {
		return nil, fmt.Errorf("%w: %s", ErrKPIDisabled, id)
	}
	r, err := e.begin(ModeTargeted)
	if err != nil {
		return nil, err
	}
	mapped := e.mapRecords(rs)

	runnable, disabled, err := e.checkFields(mapped, []string{id}, r)
	if err != nil {
		return nil, err
	}

	fields := targetFields(k)
	selected := mapped.Select(fields)
	e.log.Infof("Targeted run for %s over %d of %d columns", id, len(selected.Columns()), len(mapped.Columns()))

	var res kpi.Result
	if len(runnable) == 0 {
		res = disabled[id]
	} else {
		c := counts.ForMethod(k.Calculation.Method, selected, r.rules)
		o := kpi.Dispatch(kpi.Input{ID: id, KPI: k, Counts: c, Records: selected, Rules: r.rules, Now: r.now})
		if o.Err != nil {
			e.log.Errorf("KPI %s failed: %v", id, o.Err)
			return nil, fmt.Errorf("%w: %v", ErrNoKPIsComputed, o.Err)
		}
		res = o.Result
	}

	cache := e.store.LoadKPIs()
	cache[id] = res
	snap := storage.Snapshot{KPIs: cache, Run: e.metadata(r, ModeTargeted, mapped.Len())}
	if err := e.store.Commit(ctx, snap); err != nil {
		return nil, fmt.Errorf("save KPI cache: %w", err)
	}

	processed := selected.Columns()
	total := len(mapped.Columns())
	env := &TargetedEnvelope{
		Header:          e.header(r, ModeTargeted, mapped.Len()),
		TargetKPI:       id,
		FieldsProcessed: processed,
		TotalColumns:    total,
		UpdatedKPI:      res,
		Efficiency:      fmt.Sprintf("Processed %d/%d columns (%.1f%%)", len(processed), total, kpi.Percentage(len(processed), total)),
		Message:         fmt.Sprintf("KPI %s updated: %s", id, res.Status),
	}
	if len(runnable) == 0 {
		env.MissingFields = e.unavailable(mapped, k.RequiredFields)
	}
	return env, nil
}

// targetFields returns the record id, the KPI's required fields and the
// fields its method reads, without duplicates.
func targetFields(k config.KPI) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(fields ...string) {
		for _, f := range fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	add(counts.FieldNumber)
	add(k.RequiredFields...)
	add(methodFields[k.Calculation.Method]...)
	return out
}
