// Package kpi holds the KPI result type and the calculators registered per
// calculation method.
package kpi

import (
	"errors"
	"math"
	"time"

	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/records"
)

const (
	StatusTargetMet        = "Target Met"
	StatusAboveTarget      = "Above Target"
	StatusBelowTarget      = "Below Target"
	StatusNeedsImprovement = "Needs Improvement"
	StatusCritical         = "Critical"
	StatusAvailable        = "Available"
	StatusNoData           = "No Data"
	StatusDisabled         = "Disabled"
)

// ErrUnknownMethod is reported for calculation methods without a calculator.
var ErrUnknownMethod = errors.New("unknown calculation method")

// Result is the computed outcome of one KPI.
type Result struct {
	Name                 string                 `json:"name"`
	Status               string                 `json:"status"`
	BusinessImpact       string                 `json:"business_impact,omitempty"`
	Metrics              map[string]interface{} `json:"metrics,omitempty"`
	Targets              map[string]interface{} `json:"targets,omitempty"`
	Reason               string                 `json:"reason,omitempty"`
	EscalationRequired   *bool                  `json:"escalation_required,omitempty"`
	CalculationTimestamp string                 `json:"calculation_timestamp,omitempty"`
}

// IsEmpty reports whether r carries no computed status.
func (r Result) IsEmpty() bool {
	return r.Status == ""
}

// HasData reports whether r holds real data rather than a disabled or
// no-data sentinel.
func (r Result) HasData() bool {
	return !r.IsEmpty() && r.Status != StatusDisabled && r.Status != StatusNoData
}

// Outcome is the per-KPI value-or-failure produced by Dispatch.
type Outcome struct {
	ID     string
	Result Result
	Err    error
}

// Input is everything a calculator may consult.
type Input struct {
	ID      string
	KPI     config.KPI
	Counts  counts.Counts
	Records *records.RecordSet
	Rules   *counts.Rules
	Now     time.Time
}

func (in Input) timestamp() string {
	return in.Now.UTC().Format(time.RFC3339)
}

func (in Input) name(def string) string {
	if in.KPI.Name != "" {
		return in.KPI.Name
	}
	return def
}

func (in Input) impact(def string) string {
	if in.KPI.BusinessImpact != "" {
		return in.KPI.BusinessImpact
	}
	return def
}

// Percentage returns n/total as a percentage rounded to one decimal, zero when
// total is zero.
func Percentage(n, total int) float64 {
	return Round1(rate(n, total))
}

// rate is the unrounded percentage of n in total, 0 when total is 0. Status
// thresholds compare against it; only reported values are rounded.
func rate(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// Round1 rounds to one decimal place.
func Round1(f float64) float64 {
	return math.Round(f*10) / 10
}
