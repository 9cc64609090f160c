// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog keeps a SQLite ledger of reconciled datasets, their merged
// files, and the outcome of every download.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/esgf-harvest/internal/retrieve"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// ErrUnknownDataset reports files saved against a dataset key that was never
// recorded.
var ErrUnknownDataset = errors.New("unknown dataset")

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the ledger at cfg.Path and creates the schema if
// it does not exist.
func NewStore(cfg types.CatalogConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			key TEXT PRIMARY KEY,
			mip_era TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			institution_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			experiment_id TEXT NOT NULL,
			member_id TEXT NOT NULL,
			table_id TEXT NOT NULL,
			variable_id TEXT NOT NULL,
			grid_label TEXT NOT NULL,
			version TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_ids (
			dataset_key TEXT NOT NULL REFERENCES datasets(key) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			PRIMARY KEY (dataset_key, position)
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			dataset_key TEXT NOT NULL REFERENCES datasets(key) ON DELETE CASCADE,
			checksum TEXT,
			checksum_type TEXT,
			size INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_dataset_key ON files(dataset_key)`,
		`CREATE TABLE IF NOT EXISTS file_urls (
			path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
			protocol TEXT NOT NULL,
			position INTEGER NOT NULL,
			url TEXT NOT NULL,
			PRIMARY KEY (path, protocol, position)
		)`,
		`CREATE TABLE IF NOT EXISTS downloads (
			path TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			state TEXT NOT NULL,
			url TEXT,
			attempts INTEGER NOT NULL,
			error TEXT,
			recorded_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveDatasets upserts each dataset under its key. The stored catalog ids are
// replaced, so a later search that found more replicas wins.
func (s *Store) SaveDatasets(ctx context.Context, datasets []types.LogicalDataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range datasets {
		key := d.Key()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO datasets (key, mip_era, activity_id, institution_id, source_id,
				experiment_id, member_id, table_id, variable_id, grid_label, version, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET version=excluded.version, updated_at=excluded.updated_at`,
			key, d.MipEra, d.ActivityID, d.InstitutionID, d.SourceID,
			d.ExperimentID, d.MemberID, d.TableID, d.VariableID, d.GridLabel,
			d.Version, now,
		)
		if err != nil {
			return fmt.Errorf("upserting dataset %s: %w", key, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_ids WHERE dataset_key = ?`, key); err != nil {
			return fmt.Errorf("clearing ids of %s: %w", key, err)
		}
		for i, id := range d.ID {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO dataset_ids (dataset_key, position, id) VALUES (?, ?, ?)`, key, i, id,
			); err != nil {
				return fmt.Errorf("inserting id %s: %w", id, err)
			}
		}
	}
	return tx.Commit()
}

// ListDatasets returns every recorded dataset ordered by key.
func (s *Store) ListDatasets(ctx context.Context) ([]types.LogicalDataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, mip_era, activity_id, institution_id, source_id, experiment_id,
			member_id, table_id, variable_id, grid_label, version
		 FROM datasets ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("querying datasets: %w", err)
	}
	defer rows.Close()

	var (
		datasets []types.LogicalDataset
		keys     []string
	)
	for rows.Next() {
		var (
			key string
			d   types.LogicalDataset
		)
		if err := rows.Scan(&key, &d.MipEra, &d.ActivityID, &d.InstitutionID, &d.SourceID,
			&d.ExperimentID, &d.MemberID, &d.TableID, &d.VariableID, &d.GridLabel, &d.Version); err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		datasets = append(datasets, d)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i, key := range keys {
		ids, err := s.datasetIDs(ctx, key)
		if err != nil {
			return nil, err
		}
		datasets[i].ID = ids
	}
	return datasets, nil
}

func (s *Store) datasetIDs(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM dataset_ids WHERE dataset_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("querying ids of %s: %w", key, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveFiles records the merged files of the dataset stored under datasetKey.
// A file already present is overwritten, mirrors included.
func (s *Store) SaveFiles(ctx context.Context, datasetKey string, files []types.FileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM datasets WHERE key = ?`, datasetKey,
	).Scan(&n); err != nil {
		return fmt.Errorf("looking up dataset: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, datasetKey)
	}

	for _, f := range files {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO files (path, dataset_key, checksum, checksum_type, size)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET
				dataset_key=excluded.dataset_key, checksum=excluded.checksum,
				checksum_type=excluded.checksum_type, size=excluded.size`,
			f.Path, datasetKey, f.Checksum, f.ChecksumType, f.Size,
		)
		if err != nil {
			return fmt.Errorf("upserting file %s: %w", f.Path, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM file_urls WHERE path = ?`, f.Path); err != nil {
			return fmt.Errorf("clearing mirrors of %s: %w", f.Path, err)
		}
		for proto, urls := range f.URLs {
			for i, u := range urls {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO file_urls (path, protocol, position, url) VALUES (?, ?, ?, ?)`,
					f.Path, proto, i, u,
				); err != nil {
					return fmt.Errorf("inserting mirror %s: %w", u, err)
				}
			}
		}
	}
	return tx.Commit()
}

// FilesFor returns the files recorded for datasetKey ordered by path.
func (s *Store) FilesFor(ctx context.Context, datasetKey string) ([]types.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.path, f.checksum, f.checksum_type, f.size, u.protocol, u.url
		 FROM files f LEFT JOIN file_urls u ON u.path = f.path
		 WHERE f.dataset_key = ?
		 ORDER BY f.path, u.protocol, u.position`, datasetKey)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var files []types.FileRecord
	for rows.Next() {
		var (
			f        types.FileRecord
			proto, u sql.NullString
		)
		if err := rows.Scan(&f.Path, &f.Checksum, &f.ChecksumType, &f.Size, &proto, &u); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		if len(files) == 0 || files[len(files)-1].Path != f.Path {
			f.URLs = make(map[string][]string)
			files = append(files, f)
		}
		if proto.Valid {
			last := &files[len(files)-1]
			last.URLs[proto.String] = append(last.URLs[proto.String], u.String)
		}
	}
	return files, rows.Err()
}

// Download is the recorded outcome of the latest fetch of a path.
type Download struct {
	Path       string
	Key        string
	State      types.TaskState
	URL        string
	Attempts   int
	Error      string
	RecordedAt time.Time
}

// RecordOutcome stores o as the latest outcome for its path. Only terminal
// outcomes are recorded.
func (s *Store) RecordOutcome(ctx context.Context, o retrieve.Outcome) error {
	if !o.State.IsTerminal() {
		return fmt.Errorf("recording outcome for %s: state %q is not terminal", o.Path, o.State)
	}
	var msg string
	if o.Err != nil {
		msg = o.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (path, key, state, url, attempts, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			key=excluded.key, state=excluded.state, url=excluded.url,
			attempts=excluded.attempts, error=excluded.error, recorded_at=excluded.recorded_at`,
		o.Path, o.Key, string(o.State), o.URL, len(o.Attempts), msg,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", o.Path, err)
	}
	return nil
}

// Outcomes returns every recorded download ordered by path.
func (s *Store) Outcomes(ctx context.Context) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, key, state, url, attempts, error, recorded_at FROM downloads ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("querying downloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var (
			d        Download
			state    string
			u, msg   sql.NullString
			recorded string
		)
		if err := rows.Scan(&d.Path, &d.Key, &state, &u, &d.Attempts, &msg, &recorded); err != nil {
			return nil, fmt.Errorf("scanning download: %w", err)
		}
		d.State = types.TaskState(state)
		d.URL = u.String
		d.Error = msg.String
		d.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		out = append(out, d)
	}
	return out, rows.Err()
}
