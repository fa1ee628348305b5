package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const minimalConfig = `
metadata:
  version: "1.0"
column_mappings:
  number: Number
  priority: Priority
kpis:
  SM001:
    name: Major Incidents
    calculation:
      method: priority_count
    required_fields: [priority]
`

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "kpi_config.yaml"))
	if err != nil {
		t.Fatalf("load example config: %v", err)
	}

	want := []string{"GEOGRAPHIC", "SM001", "SM002", "SM003", "SM004"}
	if got := cfg.EnabledKPIs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("enabled kpis: want %v, got %v", want, got)
	}
	if cfg.BacklogDays() != 10 {
		t.Fatalf("expected backlog days 10, got %d", cfg.BacklogDays())
	}
	if got := cfg.KPIs["SM004"].Targets.Float("ftf_rate_min", 0); got != 80 {
		t.Fatalf("expected ftf_rate_min 80, got %v", got)
	}

	report := Validate(cfg, ValidateOptions{Methods: []string{"priority_count", "servicenow_backlog", "request_aging", "zero_reassignments", "country_distribution"}})
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected validation errors: %v", report.Errors)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !cfg.KPIs["SM001"].IsEnabled() {
		t.Fatalf("KPIs without an enabled flag must be enabled")
	}
	if cfg.PriorityPattern() != `\d+` {
		t.Fatalf("unexpected default pattern %q", cfg.PriorityPattern())
	}
	if cfg.PriorityFallback() != 99 {
		t.Fatalf("unexpected default fallback %v", cfg.PriorityFallback())
	}
	if !reflect.DeepEqual(cfg.MajorLevels(), []int{1, 2}) {
		t.Fatalf("unexpected major levels %v", cfg.MajorLevels())
	}
	if !reflect.DeepEqual(cfg.SignatureFields(), DefaultSignatureFields) {
		t.Fatalf("unexpected signature fields %v", cfg.SignatureFields())
	}
	if cfg.Version() != "1.0" || cfg.Organization() != "unknown" {
		t.Fatalf("unexpected metadata %q %q", cfg.Version(), cfg.Organization())
	}
	if cfg.KPIs["SM001"].Fallback() != "disable" || cfg.KPIs["SM001"].DisablesOnMissingData() {
		t.Fatalf("unexpected fallback handling")
	}
}

func TestDisablesOnMissingData(t *testing.T) {
	tests := []struct {
		method   string
		fallback string
		want     bool
	}{
		{MethodRequestAging, "", true},
		{MethodRequestAging, "disable", true},
		{MethodRequestAging, "zero", false},
		{MethodZeroReassignments, "", false},
		{MethodZeroReassignments, "disable", true},
		{MethodPriorityCount, "Disable", true},
	}
	for _, tt := range tests {
		k := KPI{Calculation: Calculation{Method: tt.method}, DataRequirements: DataRequirements{FallbackBehavior: tt.fallback}}
		if got := k.DisablesOnMissingData(); got != tt.want {
			t.Errorf("%s with fallback %q: want %v, got %v", tt.method, tt.fallback, tt.want, got)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing version", doc: strings.Replace(minimalConfig, `version: "1.0"`, `organization: x`, 1)},
		{name: "missing method", doc: strings.Replace(minimalConfig, "method: priority_count", "top_countries_limit: 3", 1)},
		{name: "no kpis", doc: "metadata:\n  version: \"1\"\ncolumn_mappings:\n  a: b\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := Parse([]byte("kpis: [unterminated")); err == nil || errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected a YAML parse error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestWeightSets(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "kpi_config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ws := cfg.WeightSets()
	if ws.OptionalKPI != "SM003" {
		t.Fatalf("expected optional KPI SM003, got %s", ws.OptionalKPI)
	}
	wantWith := map[string]float64{"SM001": 25, "SM002": 40, "SM003": 25, "SM004": 10}
	if !reflect.DeepEqual(ws.WithOptional, wantWith) {
		t.Fatalf("with weights: want %v, got %v", wantWith, ws.WithOptional)
	}
	wantWithout := map[string]float64{"SM001": 25, "SM002": 50, "SM004": 25}
	if !reflect.DeepEqual(ws.WithoutOptional, wantWithout) {
		t.Fatalf("without weights: want %v, got %v", wantWithout, ws.WithoutOptional)
	}
	if Sum(ws.WithOptional) != 100 || Sum(ws.WithoutOptional) != 100 {
		t.Fatalf("weight sets must sum to 100")
	}

	b := cfg.Bands()
	if b != (Bands{Excellent: 90, Good: 80, NeedsImprovement: 60}) {
		t.Fatalf("unexpected bands %+v", b)
	}
}

func TestWeightSetsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ws := cfg.WeightSets()
	if Sum(ws.WithOptional) != 100 || Sum(ws.WithoutOptional) != 100 {
		t.Fatalf("default weight sets must sum to 100: %v %v", ws.WithOptional, ws.WithoutOptional)
	}
	if cfg.AboveTargetScore() != 50 || cfg.PartialScore() != 60 {
		t.Fatalf("unexpected mid scores")
	}
}

func TestWeightSetsPartial(t *testing.T) {
	doc := minimalConfig + `
global_status_rules:
  scorecard_scoring:
    weight_sm002: 35
    weight_sm004: 15
    sm003_disabled_weights:
      weight_sm002: 45
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ws := cfg.WeightSets()
	wantWith := map[string]float64{"SM001": 25, "SM002": 35, "SM003": 25, "SM004": 15}
	if !reflect.DeepEqual(ws.WithOptional, wantWith) {
		t.Fatalf("with weights: want %v, got %v", wantWith, ws.WithOptional)
	}
	wantWithout := map[string]float64{"SM001": 25, "SM002": 45, "SM004": 25}
	if !reflect.DeepEqual(ws.WithoutOptional, wantWithout) {
		t.Fatalf("without weights: want %v, got %v", wantWithout, ws.WithoutOptional)
	}
}

func TestValidateDiagnostics(t *testing.T) {
	doc := minimalConfig + `
  SM009:
    name: Custom
    calculation:
      method: does_not_exist
    required_fields: [assignment_group]
thresholds:
  aging:
    backlog_days: 0
processing:
  priority_extraction:
    regex_pattern: '(\d+'
  date_parsing:
    formats: ["%Y-%m-%d", "%Y week %U"]
global_status_rules:
  scorecard_scoring:
    weight_sm001: 30
    weight_sm002: 30
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r := Validate(cfg, ValidateOptions{Methods: []string{"priority_count"}})

	expectContains(t, r.Errors, "unknown calculation method 'does_not_exist'")
	expectContains(t, r.Errors, "invalid regex pattern")
	expectContains(t, r.Errors, "aging threshold 'backlog_days' must be at least 1 day")
	expectContains(t, r.Errors, "primary KPI weights sum to 95.0%")
	expectContains(t, r.Errors, "unsupported date format '%Y week %U'")
	expectContains(t, r.Warnings, "KPI 'SM009' requires fields not in column_mappings: [assignment_group]")

	if r.Passed(false) {
		t.Fatalf("expected validation failure")
	}
	if err := r.Err(false); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestStrictMode(t *testing.T) {
	r := Report{Warnings: []string{"w"}}
	if !r.Passed(false) {
		t.Fatalf("warnings alone must pass in lenient mode")
	}
	if r.Passed(true) {
		t.Fatalf("warnings must fail in strict mode")
	}
}

func TestCheckColumns(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "kpi_config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cols := []string{"Number", "Priority", "State", "Reassignment count", "Resolved", "Country"}
	r := CheckColumns(cfg, cols)

	expectContains(t, r.Errors, "data file missing columns required by configuration: [Opened]")
	expectContains(t, r.Errors, "KPI 'SM002' missing required data fields: [opened_at (mapped to 'Opened')]")
	expectContains(t, r.Warnings, "KPI 'SM003' missing required data fields and will be disabled")
}

func expectContains(t *testing.T, msgs []string, substr string) {
	t.Helper()
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return
		}
	}
	t.Fatalf("expected a message containing %q, got %v", substr, msgs)
}
