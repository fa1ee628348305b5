package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PriorityExtractor derives a numeric priority from free-text priority values
// such as "1 - Critical".
type PriorityExtractor struct {
	re       *regexp.Regexp
	fallback float64
}

// NewPriorityExtractor compiles pattern. Values that do not match are given
// the fallback priority.
func NewPriorityExtractor(pattern string, fallback float64) (*PriorityExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid priority pattern %q: %w", pattern, err)
	}
	return &PriorityExtractor{re: re, fallback: fallback}, nil
}

// Fallback returns the value used for unknown priorities.
func (p *PriorityExtractor) Fallback() float64 {
	return p.fallback
}

// Extract returns the first numeric capture of the pattern in raw, or the
// whole match when the pattern has no groups. Null or non-matching values
// yield the fallback.
func (p *PriorityExtractor) Extract(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.fallback
	}
	m := p.re.FindStringSubmatch(raw)
	if m == nil {
		return p.fallback
	}
	if len(m) == 1 {
		if f, err := strconv.ParseFloat(m[0], 64); err == nil {
			return f
		}
		return p.fallback
	}
	for _, g := range m[1:] {
		if f, err := strconv.ParseFloat(g, 64); err == nil {
			return f
		}
	}
	return p.fallback
}

// Number parses a numeric cell such as a reassignment count. Null cells take
// nullValue; ok is false for unparseable text.
func Number(raw string, present bool, nullValue float64) (float64, bool) {
	if !present {
		return nullValue, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
