package processing

import (
	"github.com/sw33tLie/kpiscope/pkg/changes"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/sw33tLie/kpiscope/pkg/scorecard"
)

const (
	ModeBaseline    = "baseline"
	ModeIncremental = "incremental"
	ModeTargeted    = "targeted"
)

// Header is shared by every envelope.
type Header struct {
	Mode             string `json:"mode"`
	RunID            string `json:"run_id"`
	Timestamp        string `json:"timestamp"`
	ConfigVersion    string `json:"config_version"`
	RecordsProcessed int    `json:"records_processed"`
}

// KPIFailure is a KPI whose calculation failed during a run.
type KPIFailure struct {
	KPI   string `json:"kpi"`
	Error string `json:"error"`
}

// BaselineEnvelope is the result of a baseline run.
type BaselineEnvelope struct {
	Header
	BaselineCounts     counts.Counts         `json:"baseline_counts"`
	BaselineKPIs       map[string]kpi.Result `json:"baseline_kpis"`
	OverallScore       scorecard.Scorecard   `json:"overall_score"`
	EnabledKPIs        []string              `json:"enabled_kpis"`
	GeographicAnalysis *kpi.Result           `json:"geographic_analysis,omitempty"`
	KPIFailures        []KPIFailure          `json:"kpi_failures"`
	DegradedKPIs       []string              `json:"degraded_kpis"`
	CacheCreated       bool                  `json:"cache_created"`
	Message            string                `json:"message"`
}

// Degraded reports whether some KPI failed or was disabled for missing data.
func (e *BaselineEnvelope) Degraded() bool {
	return len(e.DegradedKPIs) > 0
}

// IncrementalEnvelope is the result of an incremental run. Only the header,
// ChangesDetected and KPIsUpdated are set when nothing changed.
type IncrementalEnvelope struct {
	Header
	ChangesDetected   bool                  `json:"changes_detected"`
	KPIsUpdated       int                   `json:"kpis_updated"`
	Changes           *changes.Summary      `json:"changes,omitempty"`
	AffectedKPIs      []string              `json:"affected_kpis,omitempty"`
	UpdatedKPIs       map[string]kpi.Result `json:"updated_kpis,omitempty"`
	OverallScore      *scorecard.Scorecard  `json:"overall_score,omitempty"`
	ProcessingSpeedup string                `json:"processing_speedup,omitempty"`
	KPIFailures       []KPIFailure          `json:"kpi_failures,omitempty"`
	DegradedKPIs      []string              `json:"degraded_kpis,omitempty"`
	Message           string                `json:"message,omitempty"`
}

func (e *IncrementalEnvelope) Degraded() bool {
	return len(e.DegradedKPIs) > 0
}

// TargetedEnvelope is the result of a targeted run.
type TargetedEnvelope struct {
	Header
	TargetKPI       string     `json:"target_kpi"`
	FieldsProcessed []string   `json:"fields_processed"`
	TotalColumns    int        `json:"total_columns"`
	UpdatedKPI      kpi.Result `json:"updated_kpi"`
	Efficiency      string     `json:"efficiency"`
	MissingFields   []string   `json:"missing_fields,omitempty"`
	Message         string     `json:"message"`
}

// Degraded reports whether the KPI was disabled for missing required fields.
func (e *TargetedEnvelope) Degraded() bool {
	return len(e.MissingFields) > 0
}
