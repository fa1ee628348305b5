package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sw33tLie/kpiscope/pkg/processing"
	"github.com/tidwall/gjson"
)

func TestWriteEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	env := &processing.TargetedEnvelope{
		Header:          processing.Header{Mode: processing.ModeTargeted, RecordsProcessed: 4},
		TargetKPI:       "SM004",
		FieldsProcessed: []string{"number", "reassignment_count"},
		TotalColumns:    8,
	}
	if err := writeEnvelope(env, path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := gjson.ParseBytes(data)
	if got.Get("mode").String() != "targeted" || got.Get("target_kpi").String() != "SM004" {
		t.Fatalf("unexpected envelope %s", data)
	}
	if got.Get("fields_processed.#").Int() != 2 || got.Get("records_processed").Int() != 4 {
		t.Fatalf("unexpected envelope %s", data)
	}
}

func TestExitError(t *testing.T) {
	err := &exitError{code: exitFatal, err: processing.ErrNoBaseline}
	if !errors.Is(err, processing.ErrNoBaseline) {
		t.Fatalf("exitError must unwrap to its cause")
	}
	if err.Error() != processing.ErrNoBaseline.Error() {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if got := (&exitError{code: exitDegraded}).Error(); got != "exit status 3" {
		t.Fatalf("unexpected message %q", got)
	}
}
