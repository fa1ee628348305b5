package processing

import (
	"context"
	"fmt"

	"github.com/sw33tLie/kpiscope/pkg/changes"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/sw33tLie/kpiscope/pkg/records"
	"github.com/sw33tLie/kpiscope/pkg/scorecard"
	"github.com/sw33tLie/kpiscope/pkg/storage"
)

// Incremental recomputes only the KPIs whose required fields changed since
// the last run. It requires a baseline and writes nothing when no record
// changed.
func (e *Engine) Incremental(ctx context.Context, rs *records.RecordSet) (*IncrementalEnvelope, error) {
	baseline := e.store.LoadCounts()
	if len(baseline) == 0 {
		return nil, ErrNoBaseline
	}
	r, err := e.begin(ModeIncremental)
	if err != nil {
		return nil, err
	}
	mapped := e.mapRecords(rs)

	current := changes.Fingerprints(mapped, e.cfg.SignatureFields())
	previous := e.store.LoadFingerprints(ctx)
	summary := changes.Detect(e.cfg, mapped, current, previous)

	env := &IncrementalEnvelope{Header: e.header(r, ModeIncremental, mapped.Len())}
	if !summary.HasChanges() {
		e.log.Infof("No changes detected, KPIs unchanged")
		return env, nil
	}
	e.log.Infof("Detected %d new and %d changed records, affected KPIs: %v", summary.NewRecords, summary.ChangedRecords, summary.AffectedKPIs)

	runnable, disabled, failures := e.checkAffected(mapped, summary.AffectedKPIs, r)

	delta := counts.Counts{}
	for _, id := range runnable {
		for k, v := range counts.ForMethod(e.cfg.KPIs[id].Calculation.Method, mapped, r.rules) {
			delta[k] = v
		}
	}
	updatedCounts := baseline.Overlay(delta)

	updated, calcFailures, err := e.calculate(ctx, runnable, updatedCounts, mapped, r)
	if err != nil {
		return nil, err
	}
	failures = append(failures, calcFailures...)
	for id, res := range disabled {
		updated[id] = res
	}

	merged := e.store.LoadKPIs()
	for id, res := range updated {
		merged[id] = res
	}
	sc := scorecard.Aggregate(e.cfg, merged, r.now)

	snap := storage.Snapshot{
		Counts:       updatedCounts,
		KPIs:         merged,
		Fingerprints: current,
		Run:          e.metadata(r, ModeIncremental, mapped.Len()),
	}
	if err := e.store.Commit(ctx, snap); err != nil {
		return nil, fmt.Errorf("save incremental state: %w", err)
	}
	e.log.Infof("Updated %d KPIs, overall score %.1f (%s)", len(updated), sc.OverallScore, sc.PerformanceBand)

	env.ChangesDetected = true
	env.KPIsUpdated = len(updated)
	env.Changes = &summary
	env.AffectedKPIs = summary.AffectedKPIs
	env.UpdatedKPIs = updated
	env.OverallScore = &sc
	env.ProcessingSpeedup = fmt.Sprintf("%dx faster", summary.SpeedupFactor)
	env.KPIFailures = failures
	env.DegradedKPIs = degraded(failures, disabled)
	env.Message = fmt.Sprintf("Updated %d of %d enabled KPIs", len(updated), len(e.cfg.EnabledKPIs()))
	return env, nil
}

// checkAffected is checkFields for incremental runs: a KPI missing required
// fields without the disable fallback becomes a failure and keeps its cached
// result.
func (e *Engine) checkAffected(rs *records.RecordSet, ids []string, r *run) ([]string, map[string]kpi.Result, []KPIFailure) {
	var runnable []string
	var failures []KPIFailure
	disabled := make(map[string]kpi.Result)
	for _, id := range ids {
		one, dis, err := e.checkFields(rs, []string{id}, r)
		switch {
		case err != nil:
			e.log.Errorf("KPI %s skipped: %v", id, err)
			failures = append(failures, KPIFailure{KPI: id, Error: err.Error()})
		case len(dis) > 0:
			disabled[id] = dis[id]
		default:
			runnable = append(runnable, one...)
		}
	}
	return runnable, disabled, failures
}
