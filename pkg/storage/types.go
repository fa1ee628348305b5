package storage

import (
	"github.com/sw33tLie/kpiscope/pkg/changes"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
)

// RunMetadata describes the last successful run.
type RunMetadata struct {
	RunID          string `json:"run_id"`
	Timestamp      string `json:"timestamp"`
	RecordCount    int    `json:"record_count"`
	ConfigVersion  string `json:"config_version"`
	Organization   string `json:"organization"`
	ProcessingMode string `json:"processing_mode"`
	DurationMS     int64  `json:"duration_ms"`
}

// Snapshot is the state a run persists. Nil fields are left untouched; a
// non-nil field replaces the whole stored blob.
type Snapshot struct {
	Counts       counts.Counts
	KPIs         map[string]kpi.Result
	Fingerprints changes.Table
	Run          *RunMetadata
}

// Logger receives warnings about unreadable blobs.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}
