package storage

// Blob names under the cache directory.
const (
	BaselineCountsFile = "baseline_counts.json"
	KPICacheFile       = "kpi_cache.json"
	LastRunFile        = "last_processed.json"
	FingerprintsFile   = "record_signatures.sqlite"
)

// Files lists every blob the store manages.
var Files = []string{BaselineCountsFile, KPICacheFile, FingerprintsFile, LastRunFile}

// sqliteSidecars are the files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"-wal", "-shm"}

// backupSuffix marks the previous version of a blob while a commit is in flight.
const backupSuffix = ".prev"

func tempPattern(name string) string {
	return "." + name + ".*.tmp"
}
