package kpi

import (
	"math"

	"github.com/sw33tLie/kpiscope/pkg/counts"
)

// majorIncidents evaluates P1/P2 counts against their maxima. Any P1 above
// its tolerance is critical. Further major levels are counted but do not
// enter total_major.
func majorIncidents(in Input) (Result, error) {
	t := in.KPI.Targets
	p1 := in.Counts.Get(counts.PriorityKey(1))
	p2 := in.Counts.Get(counts.PriorityKey(2))
	total := in.Counts.Get(counts.KeyTotal)

	totalMajor := p1 + p2

	p1Max := t.Float("p1_max", 0)
	p2Max := t.Float("p2_max", 5)
	totalMax := t.Float("total_major_max", p2Max)

	p1Exceeded := float64(p1) > p1Max
	status := StatusTargetMet
	switch {
	case p1Exceeded:
		status = StatusCritical
	case float64(p2) > p2Max || float64(totalMajor) > totalMax:
		status = StatusAboveTarget
	}
	escalate := p1Exceeded && in.KPI.EscalationRequired

	return Result{
		Name:           in.name("Major Incidents"),
		Status:         status,
		BusinessImpact: in.impact("High"),
		Metrics: map[string]interface{}{
			"p1_count":      p1,
			"p2_count":      p2,
			"total_major":   totalMajor,
			"p1_percentage": Percentage(p1, total),
			"p2_percentage": Percentage(p2, total),
		},
		Targets: map[string]interface{}{
			"p1_max":          p1Max,
			"p2_max":          p2Max,
			"total_major_max": totalMax,
		},
		EscalationRequired:   &escalate,
		CalculationTimestamp: in.timestamp(),
	}, nil
}

func backlog(in Input) (Result, error) {
	t := in.KPI.Targets
	count := in.Counts.Get(counts.KeyBacklog)
	total := in.Counts.Get(counts.KeyTotal)

	maxBacklog := t.Float("backlog_max", 0)
	adherenceMin := t.Float("adherence_min", 90)
	thresholdDefault := 10.0
	if in.Rules != nil {
		thresholdDefault = float64(in.Rules.BacklogDays)
	}
	threshold := t.Float("aging_threshold_days", thresholdDefault)

	pct := rate(count, total)
	adherence := math.Max(0, 100-pct)

	status := StatusNeedsImprovement
	switch {
	case float64(count) <= maxBacklog && adherence >= adherenceMin:
		status = StatusTargetMet
	case adherence < 50:
		status = StatusCritical
	}

	return Result{
		Name:           in.name("ServiceNow Backlog"),
		Status:         status,
		BusinessImpact: in.impact("High"),
		Metrics: map[string]interface{}{
			"backlog_count":        count,
			"total_incidents":      total,
			"backlog_percentage":   Round1(pct),
			"adherence_rate":       Round1(adherence),
			"aging_threshold_days": threshold,
		},
		Targets: map[string]interface{}{
			"backlog_max":   maxBacklog,
			"adherence_min": adherenceMin,
		},
		CalculationTimestamp: in.timestamp(),
	}, nil
}

// requestAging has no service request source in the incident table. With the
// disable fallback it reports Disabled, otherwise an empty No Data result.
func requestAging(in Input) (Result, error) {
	name := in.name("Service Request Aging")
	if in.KPI.Fallback() == "disable" {
		return Result{
			Name:           name,
			Status:         StatusDisabled,
			BusinessImpact: in.impact("Medium"),
			Reason:         "No service request data available",
			Metrics: map[string]interface{}{
				"data_source":    "incident_table_only",
				"recommendation": "Enable when service catalog data becomes available",
			},
			CalculationTimestamp: in.timestamp(),
		}, nil
	}

	t := in.KPI.Targets
	return Result{
		Name:           name,
		Status:         StatusNoData,
		BusinessImpact: in.impact("Medium"),
		Metrics: map[string]interface{}{
			"aged_count":       0,
			"total_requests":   0,
			"aging_percentage": 0.0,
			"adherence_rate":   100.0,
		},
		Targets: map[string]interface{}{
			"aged_max":      t.Float("aged_max", 0),
			"adherence_min": t.Float("adherence_min", 90),
		},
		CalculationTimestamp: in.timestamp(),
	}, nil
}

func firstTimeFix(in Input) (Result, error) {
	t := in.KPI.Targets
	count := in.Counts.Get(counts.KeyZeroReassignments)
	total := in.Counts.Get(counts.KeyTotal)
	rateMin := t.Float("ftf_rate_min", 80)

	ftf := rate(count, total)
	status := StatusBelowTarget
	switch {
	case ftf >= rateMin:
		status = StatusTargetMet
	case ftf < 60:
		status = StatusCritical
	}

	targetCount := int(math.Floor(float64(total) * rateMin / 100))
	gap := targetCount - count
	if gap < 0 {
		gap = 0
	}

	targets := map[string]interface{}{"ftf_rate_min": rateMin}
	if v, ok := t.Value("ftf_count_min"); ok && v != nil {
		targets["ftf_count_min"] = t.Float("ftf_count_min", 0)
	}

	return Result{
		Name:           in.name("First Time Fix"),
		Status:         status,
		BusinessImpact: in.impact("High"),
		Metrics: map[string]interface{}{
			"ftf_count":      count,
			"total_contacts": total,
			"ftf_rate":       Round1(ftf),
			"gap_incidents":  gap,
		},
		Targets:              targets,
		CalculationTimestamp: in.timestamp(),
	}, nil
}
