package kpi

import (
	"fmt"
	"sort"

	"github.com/sw33tLie/kpiscope/pkg/config"
)

// Calculator computes one KPI from its input.
type Calculator interface {
	Calculate(in Input) (Result, error)
}

// CalculatorFunc adapts a function to the Calculator interface.
type CalculatorFunc func(in Input) (Result, error)

func (f CalculatorFunc) Calculate(in Input) (Result, error) {
	return f(in)
}

var registry = map[string]Calculator{
	config.MethodPriorityCount:       CalculatorFunc(majorIncidents),
	config.MethodBacklog:             CalculatorFunc(backlog),
	config.MethodRequestAging:        CalculatorFunc(requestAging),
	config.MethodZeroReassignments:   CalculatorFunc(firstTimeFix),
	config.MethodCountryDistribution: CalculatorFunc(geographic),
}

// Methods returns the registered calculation methods in sorted order.
func Methods() []string {
	out := make([]string, 0, len(registry))
	for m := range registry {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the calculator registered for method.
func Lookup(method string) (Calculator, bool) {
	c, ok := registry[method]
	return c, ok
}

// Dispatch runs the calculator of in.KPI. A panic or error inside the
// calculator becomes the outcome's Err and leaves the result empty. Unknown
// methods yield an empty result with an ErrUnknownMethod error.
func Dispatch(in Input) (out Outcome) {
	out.ID = in.ID
	method := in.KPI.Calculation.Method
	calc, ok := Lookup(method)
	if !ok {
		out.Err = fmt.Errorf("%w '%s' for KPI %s", ErrUnknownMethod, method, in.ID)
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out.Result = Result{}
			out.Err = fmt.Errorf("KPI %s: calculator panicked: %v", in.ID, r)
		}
	}()

	res, err := calc.Calculate(in)
	if err != nil {
		out.Err = fmt.Errorf("KPI %s: %w", in.ID, err)
		return out
	}
	out.Result = res
	return out
}
