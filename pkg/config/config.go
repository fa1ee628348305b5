package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is returned when a configuration document fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	defaultPriorityPattern  = `\d+`
	defaultPriorityFallback = 99
	defaultBacklogDays      = 10
)

// DefaultSignatureFields are fingerprinted when processing.signature_fields is not set.
var DefaultSignatureFields = []string{"number", "priority", "state", "reassignment_count", "resolved_at"}

// Config is the parsed KPI configuration document. It is loaded once per run
// and treated as read-only afterwards.
type Config struct {
	Metadata          Metadata          `yaml:"metadata"`
	ColumnMappings    map[string]string `yaml:"column_mappings" validate:"required,min=1"`
	KPIs              map[string]KPI    `yaml:"kpis" validate:"required,min=1,dive"`
	Thresholds        Thresholds        `yaml:"thresholds"`
	Processing        Processing        `yaml:"processing"`
	GlobalStatusRules StatusRules       `yaml:"global_status_rules"`
}

type Metadata struct {
	Version       string `yaml:"version" validate:"required"`
	Organization  string `yaml:"organization"`
	SchemaVersion string `yaml:"schema_version"`
}

// KPI is the configuration of a single indicator.
type KPI struct {
	Enabled            *bool            `yaml:"enabled"`
	Name               string           `yaml:"name" validate:"required"`
	Calculation        Calculation      `yaml:"calculation"`
	Targets            Targets          `yaml:"targets"`
	RequiredFields     []string         `yaml:"required_fields"`
	BusinessImpact     string           `yaml:"business_impact"`
	EscalationRequired bool             `yaml:"escalation_required"`
	DataRequirements   DataRequirements `yaml:"data_requirements"`
	AnalysisDimensions []string         `yaml:"analysis_dimensions"`
}

type Calculation struct {
	Method                   string `yaml:"method" validate:"required"`
	TopCountriesLimit        int    `yaml:"top_countries_limit"`
	IncludePriorityBreakdown *bool  `yaml:"include_priority_breakdown"`
}

type DataRequirements struct {
	FallbackBehavior string `yaml:"fallback_behavior"`
}

// IsEnabled reports whether the KPI takes part in runs. KPIs are enabled unless
// explicitly switched off.
func (k KPI) IsEnabled() bool {
	return k.Enabled == nil || *k.Enabled
}

// Fallback returns the configured fallback behavior, "disable" when unset.
func (k KPI) Fallback() string {
	if k.DataRequirements.FallbackBehavior == "" {
		return "disable"
	}
	return k.DataRequirements.FallbackBehavior
}

// DisablesOnMissingData reports whether missing required fields downgrade this
// KPI to a Disabled result instead of failing the run. Request aging has no
// data source in the incident table and disables unless configured otherwise;
// every other method needs an explicit disable fallback.
func (k KPI) DisablesOnMissingData() bool {
	if k.DataRequirements.FallbackBehavior == "" {
		return k.Calculation.Method == MethodRequestAging
	}
	return strings.EqualFold(k.DataRequirements.FallbackBehavior, "disable")
}

// HasDimension reports whether name is listed in analysis_dimensions.
func (k KPI) HasDimension(name string) bool {
	for _, d := range k.AnalysisDimensions {
		if d == name {
			return true
		}
	}
	return false
}

// Targets holds a KPI's loosely typed target values.
type Targets map[string]interface{}

// Float returns the numeric target for key, or def when it is absent or not numeric.
func (t Targets) Float(key string, def float64) float64 {
	v, ok := t[key]
	if !ok || v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// Value returns the raw target value for key.
func (t Targets) Value(key string) (interface{}, bool) {
	v, ok := t[key]
	return v, ok
}

type Thresholds struct {
	Aging    map[string]interface{} `yaml:"aging"`
	Priority PriorityThresholds     `yaml:"priority"`
}

type PriorityThresholds struct {
	MajorIncidentLevels []int    `yaml:"major_incident_levels"`
	UnknownFallback     *float64 `yaml:"unknown_fallback"`
}

type Processing struct {
	PriorityExtraction PriorityExtraction `yaml:"priority_extraction"`
	DateParsing        DateParsing        `yaml:"date_parsing"`
	SignatureFields    []string           `yaml:"signature_fields"`
	NumericHandling    NumericHandling    `yaml:"numeric_handling"`
}

type PriorityExtraction struct {
	RegexPattern  string   `yaml:"regex_pattern"`
	FallbackValue *float64 `yaml:"fallback_value"`
}

type DateParsing struct {
	Formats []string `yaml:"formats"`
}

type NumericHandling struct {
	ReassignmentNullValue *float64 `yaml:"reassignment_null_value"`
}

type StatusRules struct {
	ScorecardScoring map[string]interface{} `yaml:"scorecard_scoring"`
	PerformanceBands map[string]interface{} `yaml:"performance_bands"`
}

// Load reads and parses the configuration document at path. Parse errors are
// returned as produced by the YAML decoder.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document and applies structural validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// EnabledKPIs returns the ids of enabled KPIs in sorted order.
func (c *Config) EnabledKPIs() []string {
	var ids []string
	for id, k := range c.KPIs {
		if k.IsEnabled() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// PriorityPattern returns the regular expression used to extract numeric priorities.
func (c *Config) PriorityPattern() string {
	if c.Processing.PriorityExtraction.RegexPattern == "" {
		return defaultPriorityPattern
	}
	return c.Processing.PriorityExtraction.RegexPattern
}

// PriorityFallback is the value substituted for priorities that do not match
// the extraction pattern.
func (c *Config) PriorityFallback() float64 {
	if v := c.Processing.PriorityExtraction.FallbackValue; v != nil {
		return *v
	}
	if v := c.Thresholds.Priority.UnknownFallback; v != nil {
		return *v
	}
	return defaultPriorityFallback
}

// MajorLevels returns the priority levels counted as major incidents.
func (c *Config) MajorLevels() []int {
	if len(c.Thresholds.Priority.MajorIncidentLevels) == 0 {
		return []int{1, 2}
	}
	return c.Thresholds.Priority.MajorIncidentLevels
}

// ReassignmentNullValue is substituted for empty reassignment counts.
func (c *Config) ReassignmentNullValue() float64 {
	if v := c.Processing.NumericHandling.ReassignmentNullValue; v != nil {
		return *v
	}
	return 0
}

// SignatureFields returns the fields fingerprinted for change detection.
func (c *Config) SignatureFields() []string {
	if len(c.Processing.SignatureFields) == 0 {
		return DefaultSignatureFields
	}
	return c.Processing.SignatureFields
}

// AgingThresholds returns the numeric entries of thresholds.aging.
func (c *Config) AgingThresholds() map[string]int {
	out := make(map[string]int)
	for name, v := range c.Thresholds.Aging {
		switch v.(type) {
		case int, int64, float64, float32:
			out[name] = cast.ToInt(v)
		}
	}
	return out
}

// BacklogDays is the age in days beyond which a record counts as backlog.
func (c *Config) BacklogDays() int {
	if d, ok := c.AgingThresholds()["backlog_days"]; ok {
		return d
	}
	return defaultBacklogDays
}

// Version returns the configuration version, "unknown" when unset.
func (c *Config) Version() string {
	if c.Metadata.Version == "" {
		return "unknown"
	}
	return c.Metadata.Version
}

// Organization returns the configured organization, "unknown" when unset.
func (c *Config) Organization() string {
	if c.Metadata.Organization == "" {
		return "unknown"
	}
	return c.Metadata.Organization
}
