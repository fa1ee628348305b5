// Package changes fingerprints incident records and detects which records and
// KPIs changed since the previous run.
package changes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/records"
)

const delimiter = "|"

// Fingerprint is the content signature of one record.
type Fingerprint struct {
	Signature string            `json:"signature"`
	Fields    map[string]string `json:"field_signatures"`
}

// Table maps record ids to fingerprints.
type Table map[string]Fingerprint

// Summary describes the changes found by Detect.
type Summary struct {
	NewRecords      int      `json:"new_records"`
	ChangedRecords  int      `json:"changed_records"`
	TotalChanges    int      `json:"total_changes"`
	ChangedFields   []string `json:"changed_fields"`
	AffectedKPIs    []string `json:"affected_kpis"`
	SpeedupFactor   int      `json:"speedup_factor"`
	SignatureFields []string `json:"signature_fields"`
}

// HasChanges reports whether any record is new or changed.
func (s Summary) HasChanges() bool {
	return s.TotalChanges > 0
}

func hash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

// RecordID returns the identifier of row i, falling back to its position.
func RecordID(rs *records.RecordSet, i int) string {
	if v, ok := rs.Value(i, counts.FieldNumber); ok {
		return strings.TrimSpace(v)
	}
	return fmt.Sprintf("row_%d", i)
}

// AvailableFields returns the signature fields present in rs, in configured order.
func AvailableFields(rs *records.RecordSet, fields []string) []string {
	var out []string
	for _, f := range fields {
		if rs.HasColumn(f) {
			out = append(out, f)
		}
	}
	return out
}

// Fingerprints computes the fingerprint of every record over fields, in the
// given order. Null values contribute an empty string.
func Fingerprints(rs *records.RecordSet, fields []string) Table {
	avail := AvailableFields(rs, fields)
	t := make(Table, rs.Len())
	parts := make([]string, len(avail))
	for i := 0; i < rs.Len(); i++ {
		fp := Fingerprint{Fields: make(map[string]string, len(avail))}
		for j, f := range avail {
			v, _ := rs.Value(i, f)
			parts[j] = v
			fp.Fields[f] = hash(v)
		}
		fp.Signature = hash(strings.Join(parts, delimiter))
		t[RecordID(rs, i)] = fp
	}
	return t
}

// Detect compares current against previous. KPIs whose required fields
// intersect the changed fields are reported as affected. New records change
// every column of rs.
func Detect(cfg *config.Config, rs *records.RecordSet, current, previous Table) Summary {
	s := Summary{SignatureFields: AvailableFields(rs, cfg.SignatureFields())}
	changed := make(map[string]bool)

	for id, fp := range current {
		prev, ok := previous[id]
		if !ok {
			s.NewRecords++
			continue
		}
		if prev.Signature == fp.Signature {
			continue
		}
		s.ChangedRecords++
		for f, h := range fp.Fields {
			if ph, ok := prev.Fields[f]; !ok || ph != h {
				changed[f] = true
			}
		}
	}
	if s.NewRecords > 0 {
		for _, c := range rs.Columns() {
			changed[c] = true
		}
	}
	s.TotalChanges = s.NewRecords + s.ChangedRecords

	for f := range changed {
		s.ChangedFields = append(s.ChangedFields, f)
	}
	sort.Strings(s.ChangedFields)

	if s.HasChanges() {
		for _, id := range cfg.EnabledKPIs() {
			for _, f := range cfg.KPIs[id].RequiredFields {
				if changed[f] {
					s.AffectedKPIs = append(s.AffectedKPIs, id)
					break
				}
			}
		}
	}

	d := s.TotalChanges
	if d < 1 {
		d = 1
	}
	s.SpeedupFactor = len(previous) / d
	return s
}
