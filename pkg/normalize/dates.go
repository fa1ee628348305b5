package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/ncruces/go-strftime"
)

// DateParser parses date-like cells. Configured formats are tried in order
// before automatic format inference.
type DateParser struct {
	layouts []string
	loc     *time.Location
}

// NewDateParser accepts strftime-style formats ("%Y-%m-%d %H:%M:%S") or Go
// reference layouts. Naive timestamps are interpreted in UTC. A strftime
// format with a directive that has no Go layout equivalent is an error.
func NewDateParser(formats []string) (*DateParser, error) {
	d := &DateParser{loc: time.UTC}
	for _, f := range formats {
		if strings.TrimSpace(f) == "" {
			continue
		}
		if strings.Contains(f, "%") {
			layout, err := strftime.Layout(f)
			if err != nil {
				return nil, fmt.Errorf("invalid date format %q: %w", f, err)
			}
			f = layout
		}
		d.layouts = append(d.layouts, f)
	}
	return d, nil
}

// Parse returns the parsed time; ok is false for null or unparseable values.
func (d *DateParser) Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range d.layouts {
		if t, err := time.ParseInLocation(layout, raw, d.loc); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(raw, d.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// WholeDays returns the whole number of days from start to end, rounded down.
func WholeDays(start, end time.Time) int {
	return int(math.Floor(end.Sub(start).Hours() / 24))
}
