package counts

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/records"
)

const testConfig = `
metadata:
  version: "1.0"
column_mappings:
  number: Number
kpis:
  SM001:
    name: Major Incidents
    calculation:
      method: priority_count
thresholds:
  aging:
    backlog_days: 10
    aged_days: 30
    label: ignored
`

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testRules(t *testing.T) *Rules {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	r, err := NewRules(cfg, now)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	return r
}

var columns = []string{"number", "priority", "opened_at", "resolved_at", "reassignment_count", "country"}

// scenario builds 100 records: 2 P1, 5 P2, 8 unresolved records older than
// the backlog threshold, and 90 records resolved within a day. Even rows and
// the null reassignment of row 1 are first-time fixes.
func scenario() *records.RecordSet {
	var rows [][]string
	for i := 0; i < 100; i++ {
		priority := "3 - Moderate"
		switch {
		case i < 2:
			priority = "1 - Critical"
		case i < 7:
			priority = "2 - High"
		case i >= 95:
			priority = "Unknown"
		}
		opened, resolved := "2024-05-30 09:00:00", "2024-05-31 09:00:00"
		if i >= 10 && i < 18 {
			opened, resolved = "2024-05-10 09:00:00", ""
		} else if i == 18 || i == 19 {
			opened, resolved = "2024-05-29 09:00:00", ""
		}
		reassign := "1"
		if i%2 == 0 {
			reassign = "0"
		}
		if i == 1 {
			reassign = ""
		}
		country := "US"
		if i%3 == 0 {
			country = "DE"
		}
		if i == 99 {
			country = ""
		}
		rows = append(rows, []string{fmt.Sprintf("INC%04d", i), priority, opened, resolved, reassign, country})
	}
	return records.New(columns, rows)
}

func TestCompute(t *testing.T) {
	c := Compute(scenario(), testRules(t))
	want := Counts{
		KeyTotal:             100,
		"priority_1_tickets": 2,
		"priority_2_tickets": 5,
		KeyZeroReassignments: 51,
		KeyResolved:          90,
		"incidents_backlog":  8,
		"incidents_aged":     0,
		KeyBacklog:           8,
		KeyCountries:         2,
		KeyGeographic:        1,
	}
	if !reflect.DeepEqual(c, want) {
		t.Fatalf("unexpected counts:\nwant %v\ngot  %v", want, c)
	}
}

func TestComputeEmpty(t *testing.T) {
	c := Compute(records.New(columns, nil), testRules(t))
	for k, v := range c {
		if k == KeyGeographic {
			continue
		}
		if v != 0 {
			t.Errorf("%s = %d, want 0", k, v)
		}
	}
	if c.Get("not_a_key") != 0 {
		t.Fatalf("missing keys must read as zero")
	}
}

func TestComputeMissingColumns(t *testing.T) {
	rs := records.New([]string{"number"}, [][]string{{"INC1"}, {"INC2"}})
	c := Compute(rs, testRules(t))
	want := Counts{KeyTotal: 2, KeyGeographic: 0}
	if !reflect.DeepEqual(c, want) {
		t.Fatalf("want %v, got %v", want, c)
	}
}

func TestMajorNeverExceedsTotal(t *testing.T) {
	r := testRules(t)
	r.MajorLevels = []int{1, 1, 2}
	rs := records.New([]string{"priority"}, [][]string{{"1"}, {"1"}, {"2"}, {"Unknown"}, {"99"}})
	c := Compute(rs, r)
	major := c.Get(PriorityKey(1)) + c.Get(PriorityKey(2))
	if major != 3 || major > c.Get(KeyTotal) {
		t.Fatalf("unexpected major count %d of %d", major, c.Get(KeyTotal))
	}
}

func TestBacklogRule(t *testing.T) {
	r := testRules(t)
	rs := records.New([]string{"opened_at", "resolved_at"}, [][]string{
		{"2024-05-01 00:00:00", "2024-05-20 00:00:00"}, // resolved late
		{"2024-05-01 00:00:00", "2024-05-05 00:00:00"}, // resolved in time
		{"2024-05-01 00:00:00", ""},                    // open too long
		{"2024-05-28 00:00:00", ""},                    // open, young
		{"", ""},                                       // no open date
		{"2024-05-01 00:00:00", "garbage"},             // unparseable resolution
		{"2024-05-22 00:00:00", ""},                    // exactly at the threshold
	})
	want := []bool{true, false, true, false, false, true, false}
	for i, w := range want {
		if got := r.IsBacklog(rs, i); got != w {
			t.Errorf("row %d: IsBacklog = %v, want %v", i, got, w)
		}
	}
}

func TestForMethod(t *testing.T) {
	r := testRules(t)
	rs := scenario()
	tests := []struct {
		method string
		want   Counts
	}{
		{config.MethodPriorityCount, Counts{KeyTotal: 100, "priority_1_tickets": 2, "priority_2_tickets": 5}},
		{config.MethodZeroReassignments, Counts{KeyTotal: 100, KeyZeroReassignments: 51}},
		{config.MethodBacklog, Counts{KeyTotal: 100, KeyBacklog: 8}},
		{config.MethodCountryDistribution, Counts{KeyTotal: 100, KeyCountries: 2, KeyGeographic: 1}},
		{config.MethodRequestAging, Counts{KeyTotal: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if got := ForMethod(tt.method, rs, r); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOverlay(t *testing.T) {
	base := Counts{KeyTotal: 10, KeyBacklog: 3, KeyZeroReassignments: 4}
	got := base.Overlay(Counts{KeyTotal: 11, KeyZeroReassignments: 6})
	want := Counts{KeyTotal: 11, KeyBacklog: 3, KeyZeroReassignments: 6}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	if base[KeyTotal] != 10 {
		t.Fatalf("overlay must not modify the receiver")
	}
}
