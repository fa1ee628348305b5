// Package processing runs the KPI pipeline in baseline, incremental and
// targeted mode against a cache store.
package processing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/sw33tLie/kpiscope/pkg/records"
	"github.com/sw33tLie/kpiscope/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Options tunes an Engine.
type Options struct {
	// Now is the clock used for ages and timestamps. Defaults to time.Now.
	Now func() time.Time
	// Logger receives progress messages. Nil discards them.
	Logger Logger
	// Concurrency bounds concurrent KPI calculations. Defaults to 4.
	Concurrency int
}

// Engine runs the pipeline for one configuration and cache directory. The
// engine owns the read-then-write sequencing of the store; it assumes it is
// the only writer.
type Engine struct {
	cfg         *config.Config
	store       *storage.Store
	log         Logger
	now         func() time.Time
	concurrency int
}

// New checks that every enabled KPI has a calculator and returns an engine.
func New(cfg *config.Config, store *storage.Store, opts Options) (*Engine, error) {
	for _, id := range cfg.EnabledKPIs() {
		method := cfg.KPIs[id].Calculation.Method
		if _, ok := kpi.Lookup(method); !ok {
			return nil, fmt.Errorf("%w: KPI %s uses unknown calculation method '%s'", config.ErrInvalidConfig, id, method)
		}
	}
	if _, err := counts.NewRules(cfg, time.Now()); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	e := &Engine{cfg: cfg, store: store, log: opts.Logger, now: opts.Now, concurrency: opts.Concurrency}
	if e.log == nil {
		e.log = nopLogger{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.concurrency <= 0 {
		e.concurrency = 4
	}
	return e, nil
}

// run carries the per-run clock and identity.
type run struct {
	id      string
	now     time.Time
	started time.Time
	rules   *counts.Rules
}

func (e *Engine) begin(mode string) (*run, error) {
	now := e.now()
	rules, err := counts.NewRules(e.cfg, now)
	if err != nil {
		return nil, err
	}
	r := &run{id: uuid.NewString(), now: now, started: time.Now(), rules: rules}
	e.log.Debugf("Starting %s run %s", mode, r.id)
	return r, nil
}

func (e *Engine) header(r *run, mode string, records int) Header {
	return Header{
		Mode:             mode,
		RunID:            r.id,
		Timestamp:        r.now.UTC().Format(time.RFC3339),
		ConfigVersion:    e.cfg.Version(),
		RecordsProcessed: records,
	}
}

func (e *Engine) metadata(r *run, mode string, records int) *storage.RunMetadata {
	return &storage.RunMetadata{
		RunID:          r.id,
		Timestamp:      r.now.UTC().Format(time.RFC3339),
		RecordCount:    records,
		ConfigVersion:  e.cfg.Version(),
		Organization:   e.cfg.Organization(),
		ProcessingMode: mode,
		DurationMS:     time.Since(r.started).Milliseconds(),
	}
}

func (e *Engine) mapRecords(rs *records.RecordSet) *records.RecordSet {
	mapped, n := records.ApplyMapping(rs, e.cfg.ColumnMappings)
	e.log.Infof("Mapped %d of %d configured columns over %d records", n, len(e.cfg.ColumnMappings), mapped.Len())
	return mapped
}

// checkFields splits ids into KPIs that can run and KPIs disabled for
// missing required fields. A KPI without the disable fallback fails with a
// *MissingFieldsError.
func (e *Engine) checkFields(rs *records.RecordSet, ids []string, r *run) (runnable []string, disabled map[string]kpi.Result, err error) {
	disabled = make(map[string]kpi.Result)
	for _, id := range ids {
		k := e.cfg.KPIs[id]
		missing := e.unavailable(rs, k.RequiredFields)
		if len(missing) == 0 {
			runnable = append(runnable, id)
			continue
		}
		if !k.DisablesOnMissingData() {
			return nil, nil, &MissingFieldsError{KPI: id, Fields: missing}
		}
		e.log.Warnf("KPI %s disabled, required fields not available: %s", id, strings.Join(missing, ", "))
		disabled[id] = disabledResult(k, missing, r.now)
	}
	return runnable, disabled, nil
}

// unavailable returns the fields that are not in column_mappings or whose
// mapped column is absent from rs. A raw column that happens to carry a
// canonical name does not make an unmapped field available.
func (e *Engine) unavailable(rs *records.RecordSet, fields []string) []string {
	var missing []string
	for _, f := range fields {
		if _, ok := e.cfg.ColumnMappings[f]; !ok || !rs.HasColumn(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func disabledResult(k config.KPI, missing []string, now time.Time) kpi.Result {
	return kpi.Result{
		Name:                 k.Name,
		Status:               kpi.StatusDisabled,
		BusinessImpact:       k.BusinessImpact,
		Reason:               "Required fields not available: " + strings.Join(missing, ", "),
		CalculationTimestamp: now.UTC().Format(time.RFC3339),
	}
}

// calculate dispatches ids concurrently. Failed KPIs are logged and returned
// as failures; unknown methods are skipped with a warning.
func (e *Engine) calculate(ctx context.Context, ids []string, c counts.Counts, rs *records.RecordSet, r *run) (map[string]kpi.Result, []KPIFailure, error) {
	outcomes := make([]kpi.Outcome, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = kpi.Dispatch(kpi.Input{
				ID:      id,
				KPI:     e.cfg.KPIs[id],
				Counts:  c,
				Records: rs,
				Rules:   r.rules,
				Now:     r.now,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	results := make(map[string]kpi.Result, len(ids))
	var failures []KPIFailure
	for _, o := range outcomes {
		switch {
		case errors.Is(o.Err, kpi.ErrUnknownMethod):
			e.log.Warnf("Skipping KPI %s: %v", o.ID, o.Err)
		case o.Err != nil:
			e.log.Errorf("KPI %s failed: %v", o.ID, o.Err)
			failures = append(failures, KPIFailure{KPI: o.ID, Error: o.Err.Error()})
		default:
			e.log.Debugf("KPI %s: %s", o.ID, o.Result.Status)
			results[o.ID] = o.Result
		}
	}
	return results, failures, nil
}

func degraded(failures []KPIFailure, disabled map[string]kpi.Result) []string {
	set := make(map[string]bool)
	for _, f := range failures {
		set[f.KPI] = true
	}
	for id := range disabled {
		set[id] = true
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]kpi.Result) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
