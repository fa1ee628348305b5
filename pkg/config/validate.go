package config

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/ncruces/go-strftime"
)

// Report collects validation diagnostics.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Passed reports whether validation succeeded. In strict mode warnings fail too.
func (r Report) Passed(strict bool) bool {
	if len(r.Errors) > 0 {
		return false
	}
	return !strict || len(r.Warnings) == 0
}

// Err returns nil when the report passes, otherwise an ErrInvalidConfig
// wrapping every diagnostic that caused the failure.
func (r Report) Err(strict bool) error {
	if r.Passed(strict) {
		return nil
	}
	msgs := append([]string{}, r.Errors...)
	if strict {
		msgs = append(msgs, r.Warnings...)
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func (r *Report) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	// Methods lists the calculation methods that have a registered calculator.
	// When empty the method check is skipped.
	Methods []string
}

// Validate checks the semantic consistency of a parsed configuration.
func Validate(cfg *Config, opts ValidateOptions) Report {
	var r Report

	if cfg.Metadata.Version == "" {
		r.errorf("missing required metadata field: version")
	}
	if len(cfg.KPIs) == 0 {
		r.errorf("missing required section: kpis")
	}

	known := make(map[string]bool, len(opts.Methods))
	for _, m := range opts.Methods {
		known[m] = true
	}

	for _, id := range sortedKPIIDs(cfg) {
		k := cfg.KPIs[id]
		if !k.IsEnabled() {
			continue
		}
		if len(known) > 0 && !known[k.Calculation.Method] {
			r.errorf("KPI '%s' uses unknown calculation method '%s'", id, k.Calculation.Method)
		}
		var missing []string
		for _, f := range k.RequiredFields {
			if _, ok := cfg.ColumnMappings[f]; !ok {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			r.warnf("KPI '%s' requires fields not in column_mappings: %v", id, missing)
		}
		switch k.Calculation.Method {
		case MethodPriorityCount:
			if k.Targets.Float("p1_max", 0) > 0 {
				r.warnf("%s: P1 incidents target is not zero, consider a zero-tolerance policy", id)
			}
		case MethodZeroReassignments:
			ftf := k.Targets.Float("ftf_rate_min", 80)
			if ftf < 20 {
				r.warnf("%s: first-time fix target %.1f%% may be too low", id, ftf)
			}
			if ftf > 95 {
				r.warnf("%s: first-time fix target %.1f%% may be unrealistically high", id, ftf)
			}
			if ftf > 100 || ftf < 0 {
				r.errorf("%s: rate target 'ftf_rate_min' must be within 0-100", id)
			}
		}
	}

	if _, err := regexp.Compile(cfg.PriorityPattern()); err != nil {
		r.errorf("invalid regex pattern in priority_extraction: %v", err)
	}
	for _, f := range cfg.Processing.DateParsing.Formats {
		if !strings.Contains(f, "%") {
			continue
		}
		if _, err := strftime.Layout(f); err != nil {
			r.errorf("unsupported date format '%s' in date_parsing: %v", f, err)
		}
	}

	for name, days := range cfg.AgingThresholds() {
		if days < 1 {
			r.errorf("aging threshold '%s' must be at least 1 day", name)
		} else if days > 60 {
			r.warnf("aging threshold '%s' (%d days) exceeds reasonable maximum (60 days)", name, days)
		}
	}

	for _, level := range cfg.Thresholds.Priority.MajorIncidentLevels {
		if level < 1 || level > 3 {
			r.warnf("unusual major incident priority level: %d (expected 1-3)", level)
		}
	}

	seen := make(map[string]string)
	for _, canonical := range sortedKeys(cfg.ColumnMappings) {
		raw := cfg.ColumnMappings[canonical]
		if strings.TrimSpace(raw) == "" {
			r.warnf("empty column mapping for '%s'", canonical)
			continue
		}
		if other, ok := seen[raw]; ok {
			r.errorf("duplicate target column '%s' in mappings (%s, %s)", raw, other, canonical)
		}
		seen[raw] = canonical
	}

	ws := cfg.WeightSets()
	for label, set := range map[string]map[string]float64{"primary": ws.WithOptional, ws.OptionalKPI + " disabled": ws.WithoutOptional} {
		if total := Sum(set); math.Abs(total-100) > 0.1 {
			r.errorf("%s KPI weights sum to %.1f%% instead of 100%%", label, total)
		}
	}
	sort.Strings(r.Errors)

	return r
}

// CheckColumns verifies the configuration against the raw column names of a data file.
func CheckColumns(cfg *Config, columns []string) Report {
	var r Report
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, canonical := range sortedKeys(cfg.ColumnMappings) {
		raw := cfg.ColumnMappings[canonical]
		if !present[raw] {
			missing = append(missing, raw)
		}
	}
	if len(missing) > 0 {
		r.errorf("data file missing columns required by configuration: %v", missing)
	}

	for _, id := range sortedKPIIDs(cfg) {
		k := cfg.KPIs[id]
		if !k.IsEnabled() {
			continue
		}
		var unavailable []string
		for _, f := range k.RequiredFields {
			raw, ok := cfg.ColumnMappings[f]
			switch {
			case ok && present[raw]:
			case ok:
				unavailable = append(unavailable, fmt.Sprintf("%s (mapped to '%s')", f, raw))
			default:
				unavailable = append(unavailable, f)
			}
		}
		if len(unavailable) == 0 {
			continue
		}
		if k.DisablesOnMissingData() {
			r.warnf("KPI '%s' missing required data fields and will be disabled: %v", id, unavailable)
		} else {
			r.errorf("KPI '%s' missing required data fields: %v", id, unavailable)
		}
	}
	return r
}

func sortedKPIIDs(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.KPIs))
	for id := range cfg.KPIs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
