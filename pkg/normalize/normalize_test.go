package normalize

import (
	"testing"
	"time"
)

func TestExtractPriority(t *testing.T) {
	p, err := NewPriorityExtractor(`\d+`, 99)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"leading digit", "1 - Critical", 1},
		{"bare number", "3", 3},
		{"embedded", "Priority 2 (High)", 2},
		{"no digits", "Unknown", 99},
		{"null", "", 99},
		{"whitespace", "   ", 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Extract(tt.raw); got != tt.want {
				t.Errorf("Extract(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractPriorityCaptureGroup(t *testing.T) {
	p, err := NewPriorityExtractor(`P(\d)`, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Extract("INC P2 major"); got != 2 {
		t.Fatalf("expected the capture group to be used, got %v", got)
	}
	if got := p.Extract("nothing"); got != 5 {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestExtractPriorityInvalidPattern(t *testing.T) {
	if _, err := NewPriorityExtractor(`(\d+`, 99); err == nil {
		t.Fatalf("expected an error for an invalid pattern")
	}
}

func TestNumber(t *testing.T) {
	if v, ok := Number("", false, 0); !ok || v != 0 {
		t.Fatalf("null must take the configured value, got %v %v", v, ok)
	}
	if v, ok := Number(" 2 ", true, 0); !ok || v != 2 {
		t.Fatalf("unexpected %v %v", v, ok)
	}
	if _, ok := Number("two", true, 0); ok {
		t.Fatalf("non-numeric text must not parse")
	}
}

func TestNewDateParserFormats(t *testing.T) {
	d, err := NewDateParser([]string{"%d-%b-%y %I:%M %p", "2006/01/02"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := d.Parse("03-Apr-24 02:15 PM")
	if !ok || !got.Equal(time.Date(2024, 4, 3, 14, 15, 0, 0, time.UTC)) {
		t.Fatalf("strftime format: got %v %v", got, ok)
	}
	got, ok = d.Parse("2024/04/05")
	if !ok || !got.Equal(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Go layout: got %v %v", got, ok)
	}

	if _, err := NewDateParser([]string{"%Y week %U"}); err == nil {
		t.Fatalf("a directive without a Go layout equivalent must be rejected")
	}
}

func TestParseDate(t *testing.T) {
	d, err := NewDateParser([]string{"%d/%m/%Y %H:%M:%S"})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := d.Parse("03/04/2024 10:00:00")
	if !ok {
		t.Fatalf("expected the configured format to parse")
	}
	want := time.Date(2024, 4, 3, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("configured formats must win over inference: got %v, want %v", got, want)
	}

	got, ok = d.Parse("2024-01-15 08:30:00")
	if !ok || !got.Equal(time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected inferred date, got %v %v", got, ok)
	}

	for _, raw := range []string{"", "not a date"} {
		if _, ok := d.Parse(raw); ok {
			t.Errorf("%q must not parse", raw)
		}
	}
}

func TestWholeDays(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Time
		want int
	}{
		{start.Add(23 * time.Hour), 0},
		{start.Add(24 * time.Hour), 1},
		{start.Add(11*24*time.Hour + time.Hour), 11},
		{start.Add(-time.Hour), -1},
	}
	for _, tt := range tests {
		if got := WholeDays(start, tt.end); got != tt.want {
			t.Errorf("WholeDays(%v) = %d, want %d", tt.end.Sub(start), got, tt.want)
		}
	}
}
