package processing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoBaseline is returned by incremental runs without stored baseline counts.
	ErrNoBaseline = errors.New("no baseline found, run baseline mode first")
	// ErrUnknownKPI is returned by targeted runs for ids missing from the configuration.
	ErrUnknownKPI = errors.New("unknown KPI")
	// ErrKPIDisabled is returned by targeted runs for disabled KPIs.
	ErrKPIDisabled = errors.New("KPI is disabled")
	// ErrNoKPIsComputed is returned when every KPI of a run failed.
	ErrNoKPIsComputed = errors.New("no KPIs could be computed")
)

// MissingFieldsError reports required fields absent from the mapped input.
type MissingFieldsError struct {
	KPI    string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("KPI %s requires fields missing from the input: %s", e.KPI, strings.Join(e.Fields, ", "))
}
