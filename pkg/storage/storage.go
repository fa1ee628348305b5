package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sw33tLie/kpiscope/pkg/changes"
	"github.com/sw33tLie/kpiscope/pkg/counts"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS record_fingerprints (
  record_id        TEXT PRIMARY KEY,
  signature        TEXT NOT NULL,
  field_signatures TEXT NOT NULL
);`

// Store is the cache directory holding the four blobs of a KPI pipeline.
// Each blob is loaded independently and an absent or unreadable blob reads as
// empty. There is no protection against concurrent writers: the last Commit
// wins.
type Store struct {
	dir string
	log Logger
}

// Open prepares the cache directory. A nil logger discards warnings.
func Open(dir string, log Logger) (*Store, error) {
	if log == nil {
		log = nopLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the location of a blob.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// LoadCounts returns the baseline counts, empty when none were saved.
func (s *Store) LoadCounts() counts.Counts {
	c := counts.Counts{}
	if !s.readJSON(BaselineCountsFile, &c) {
		return counts.Counts{}
	}
	return c
}

// HasBaseline reports whether baseline counts exist.
func (s *Store) HasBaseline() bool {
	return len(s.LoadCounts()) > 0
}

// LoadKPIs returns the cached KPI results, empty when none were saved.
func (s *Store) LoadKPIs() map[string]kpi.Result {
	m := make(map[string]kpi.Result)
	if !s.readJSON(KPICacheFile, &m) {
		return make(map[string]kpi.Result)
	}
	return m
}

// LoadRunMetadata returns the metadata of the last successful run.
func (s *Store) LoadRunMetadata() (RunMetadata, bool) {
	var m RunMetadata
	if !s.readJSON(LastRunFile, &m) {
		return RunMetadata{}, false
	}
	return m, true
}

// LoadFingerprints returns the stored fingerprint table. A missing or corrupt
// database reads as empty.
func (s *Store) LoadFingerprints(ctx context.Context) changes.Table {
	t := make(changes.Table)
	path := s.Path(FingerprintsFile)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warnf("Could not stat %s: %v", path, err)
		}
		return t
	}

	db, err := openDB(ctx, path)
	if err != nil {
		s.log.Warnf("Fingerprint store %s is unreadable, treating it as empty: %v", path, err)
		return t
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT record_id, signature, field_signatures FROM record_fingerprints")
	if err != nil {
		s.log.Warnf("Fingerprint store %s is unreadable, treating it as empty: %v", path, err)
		return t
	}
	defer rows.Close()
	for rows.Next() {
		var id, sig, fields string
		if err := rows.Scan(&id, &sig, &fields); err != nil {
			s.log.Warnf("Fingerprint store %s is corrupt, treating it as empty: %v", path, err)
			return make(changes.Table)
		}
		fp := changes.Fingerprint{Signature: sig}
		if gjson.Valid(fields) {
			_ = json.Unmarshal([]byte(fields), &fp.Fields)
		}
		t[id] = fp
	}
	if err := rows.Err(); err != nil {
		s.log.Warnf("Fingerprint store %s is corrupt, treating it as empty: %v", path, err)
		return make(changes.Table)
	}
	return t
}

// rename is swapped in tests to inject failures.
var rename = os.Rename

type stagedFile struct {
	tmp, path string
}

// published records a blob moved into place and the previous version it
// displaced, so the move can be undone.
type published struct {
	path, backup string
	hadPrevious  bool
}

// Commit persists snap. JSON blobs are staged as temp files and fingerprints
// in an open transaction. The blobs are moved into place while the
// transaction is still open and the transaction commits last; a failure at
// any step restores the previous blobs and rolls the transaction back.
func (s *Store) Commit(ctx context.Context, snap Snapshot) (err error) {
	var staged []stagedFile
	defer func() {
		for _, f := range staged {
			_ = os.Remove(f.tmp)
		}
	}()

	stage := func(name string, v interface{}) error {
		tmp, err := s.writeTemp(name, v)
		if err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		staged = append(staged, stagedFile{tmp: tmp, path: s.Path(name)})
		return nil
	}
	if snap.Counts != nil {
		if err = stage(BaselineCountsFile, snap.Counts); err != nil {
			return err
		}
	}
	if snap.KPIs != nil {
		if err = stage(KPICacheFile, snap.KPIs); err != nil {
			return err
		}
	}
	if snap.Run != nil {
		if err = stage(LastRunFile, snap.Run); err != nil {
			return err
		}
	}

	var tx *sql.Tx
	if snap.Fingerprints != nil {
		db, stx, serr := s.stageFingerprints(ctx, snap.Fingerprints)
		if serr != nil {
			return fmt.Errorf("save fingerprints: %w", serr)
		}
		defer db.Close()
		tx = stx
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
	}

	done, err := publish(staged)
	if err != nil {
		return err
	}
	if tx != nil {
		if err = tx.Commit(); err != nil {
			restore(done)
			return fmt.Errorf("save fingerprints: %w", err)
		}
	}
	for _, p := range done {
		if p.hadPrevious {
			_ = os.Remove(p.backup)
		}
	}
	return nil
}

// publish moves every staged file into place, keeping the displaced blobs as
// backups. On failure the moves already made are undone.
func publish(staged []stagedFile) ([]published, error) {
	var done []published
	for _, f := range staged {
		p := published{path: f.path, backup: f.tmp + backupSuffix}
		if err := rename(f.path, p.backup); err == nil {
			p.hadPrevious = true
		} else if !errors.Is(err, fs.ErrNotExist) {
			restore(done)
			return nil, fmt.Errorf("commit %s: %w", filepath.Base(f.path), err)
		}
		if err := rename(f.tmp, f.path); err != nil {
			restore(append(done, p))
			return nil, fmt.Errorf("commit %s: %w", filepath.Base(f.path), err)
		}
		done = append(done, p)
	}
	return done, nil
}

// restore undoes published moves in reverse order.
func restore(done []published) {
	for i := len(done) - 1; i >= 0; i-- {
		p := done[i]
		if p.hadPrevious {
			_ = rename(p.backup, p.path)
		} else {
			_ = os.Remove(p.path)
		}
	}
}

// Clear removes every blob.
func (s *Store) Clear() error {
	for _, name := range Files {
		paths := []string{s.Path(name)}
		if name == FingerprintsFile {
			for _, suffix := range sqliteSidecars {
				paths = append(paths, s.Path(name)+suffix)
			}
		}
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}
	return nil
}

// stageFingerprints writes t into an open transaction that replaces the whole
// table. The caller commits or rolls back the transaction and closes the db.
func (s *Store) stageFingerprints(ctx context.Context, t changes.Table) (*sql.DB, *sql.Tx, error) {
	path := s.Path(FingerprintsFile)
	db, err := openDB(ctx, path)
	if err != nil {
		// An unreadable store is replaced rather than repaired.
		s.log.Warnf("Replacing unreadable fingerprint store %s: %v", path, err)
		for _, suffix := range append([]string{""}, sqliteSidecars...) {
			_ = os.Remove(path + suffix)
		}
		if db, err = openDB(ctx, path); err != nil {
			return nil, nil, err
		}
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	fail := func(err error) (*sql.DB, *sql.Tx, error) {
		_ = tx.Rollback()
		db.Close()
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM record_fingerprints"); err != nil {
		return fail(err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO record_fingerprints(record_id, signature, field_signatures) VALUES(?,?,?)")
	if err != nil {
		return fail(err)
	}
	defer stmt.Close()
	for id, fp := range t {
		fields, err := json.Marshal(fp.Fields)
		if err != nil {
			return fail(err)
		}
		if _, err := stmt.ExecContext(ctx, id, fp.Signature, string(fields)); err != nil {
			return fail(err)
		}
	}
	return db, tx, nil
}

func (s *Store) writeTemp(name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(s.dir, tempPattern(name))
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// readJSON decodes a blob into v. It returns false, logging a warning for
// anything but absence, when the blob cannot be used.
func (s *Store) readJSON(name string, v interface{}) bool {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warnf("Could not read %s, treating it as empty: %v", path, err)
		}
		return false
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		s.log.Warnf("%s is not a JSON object, treating it as empty", path)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warnf("Could not decode %s, treating it as empty: %v", path, err)
		return false
	}
	return true
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
