package processing

import (
	"context"
	"fmt"

	"github.com/sw33tLie/kpiscope/pkg/changes"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/records"
	"github.com/sw33tLie/kpiscope/pkg/scorecard"
	"github.com/sw33tLie/kpiscope/pkg/storage"
)

// Baseline recomputes every enabled KPI from rs and replaces the cached
// state. Nothing is persisted when the run fails.
func (e *Engine) Baseline(ctx context.Context, rs *records.RecordSet) (*BaselineEnvelope, error) {
	r, err := e.begin(ModeBaseline)
	if err != nil {
		return nil, err
	}
	mapped := e.mapRecords(rs)

	enabled := e.cfg.EnabledKPIs()
	runnable, disabled, err := e.checkFields(mapped, enabled, r)
	if err != nil {
		return nil, err
	}

	c := counts.Compute(mapped, r.rules)
	e.log.Infof("Computed %d baseline counts over %d records", len(c), mapped.Len())

	results, failures, err := e.calculate(ctx, runnable, c, mapped, r)
	if err != nil {
		return nil, err
	}
	for id, res := range disabled {
		results[id] = res
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %d of %d enabled KPIs failed", ErrNoKPIsComputed, len(failures), len(enabled))
	}

	sc := scorecard.Aggregate(e.cfg, results, r.now)
	fps := changes.Fingerprints(mapped, e.cfg.SignatureFields())

	snap := storage.Snapshot{
		Counts:       c,
		KPIs:         results,
		Fingerprints: fps,
		Run:          e.metadata(r, ModeBaseline, mapped.Len()),
	}
	if err := e.store.Commit(ctx, snap); err != nil {
		return nil, fmt.Errorf("save baseline: %w", err)
	}
	e.log.Infof("Baseline saved: %d KPIs, %d fingerprints, overall score %.1f (%s)", len(results), len(fps), sc.OverallScore, sc.PerformanceBand)

	env := &BaselineEnvelope{
		Header:         e.header(r, ModeBaseline, mapped.Len()),
		BaselineCounts: c,
		BaselineKPIs:   results,
		OverallScore:   sc,
		EnabledKPIs:    enabled,
		KPIFailures:    failures,
		DegradedKPIs:   degraded(failures, disabled),
		CacheCreated:   true,
		Message:        fmt.Sprintf("Baseline established for %d KPIs", len(results)),
	}
	if env.KPIFailures == nil {
		env.KPIFailures = []KPIFailure{}
	}
	for _, id := range sortedKeys(results) {
		if e.cfg.KPIs[id].Calculation.Method == config.MethodCountryDistribution {
			geo := results[id]
			env.GeographicAnalysis = &geo
			break
		}
	}
	return env, nil
}
