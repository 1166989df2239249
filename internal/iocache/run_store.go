package iocache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// Table names for run tracking.
const (
	runsTable    = "rosmap_runs"
	recordsTable = "rosmap_records"
)

// ErrNoRuns is returned when no stored run reached the requested stage.
var ErrNoRuns = errors.New("no stored runs")

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
// The none backend returns a store that records nothing.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (*RunStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &RunStoreImpl{backend: backend}, nil
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunDBFilePath()
	}

	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	if err := createRunTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

// createRunTables creates the run tracking tables.
func createRunTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{runsTable, getCreateRunsQuery(backend)},
		{recordsTable, getCreateRecordsQuery(backend)},
	}
	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateRunsQuery returns the CREATE TABLE query for rosmap_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(runsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms INT,
				repository_count INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGSERIAL PRIMARY KEY,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms INT,
				repository_count INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				repository_count INTEGER NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getCreateRecordsQuery returns the CREATE TABLE query for rosmap_records.
func getCreateRecordsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(recordsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				stage VARCHAR(16) NOT NULL,
				url VARCHAR(512) NOT NULL,
				payload LONGTEXT NOT NULL,
				PRIMARY KEY (run_id, stage, url)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				stage TEXT NOT NULL,
				url TEXT NOT NULL,
				payload TEXT NOT NULL,
				PRIMARY KEY (run_id, stage, url)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				stage TEXT NOT NULL,
				url TEXT NOT NULL,
				payload TEXT NOT NULL,
				PRIMARY KEY (run_id, stage, url)
			);
		`, quotedTableName)
	}
}

// BeginRun creates a new run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, configParams map[string]any) (int64, error) {
	if rs.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)
	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES ($1, $2) RETURNING run_id`, quotedTableName)
		err = rs.db.QueryRow(query, startTime, string(configJSON)).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES (?, ?)`, quotedTableName)
		var result sql.Result
		result, err = rs.db.Exec(query, formatTime(startTime, rs.backend), string(configJSON))
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// RecordCheckpoint replaces the stored records of one stage of a run.
func (rs *RunStoreImpl) RecordCheckpoint(runID int64, stage schema.Stage, records []schema.RepositoryRecord) error {
	if rs.db == nil {
		return nil
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	quotedTableName := quoteTableName(recordsTable, rs.backend)
	deleteQuery := rebind(rs.backend, fmt.Sprintf(`DELETE FROM %s WHERE run_id = ? AND stage = ?`, quotedTableName))
	if _, err := tx.Exec(deleteQuery, runID, string(stage)); err != nil {
		return fmt.Errorf("failed to clear %s checkpoint: %w", stage, err)
	}

	insert, err := tx.Prepare(rebind(rs.backend, fmt.Sprintf(`INSERT INTO %s (run_id, stage, url, payload) VALUES (?, ?, ?, ?)`, quotedTableName)))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.URL, err)
		}
		if _, err := insert.Exec(runID, string(stage), rec.URL, string(payload)); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.URL, err)
		}
	}
	return tx.Commit()
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, repositoryCount int) error {
	if rs.db == nil {
		return nil
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)
	var start timeScanner
	query := rebind(rs.backend, fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = ?`, quotedTableName))
	if err := rs.db.QueryRow(query, runID).Scan(&start); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(start.Time).Milliseconds()

	update := rebind(rs.backend, fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, repository_count = ? WHERE run_id = ?`, quotedTableName))
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, repositoryCount, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// LatestRecords returns the records of the most recent run that reached stage, sorted by URL.
func (rs *RunStoreImpl) LatestRecords(stage schema.Stage) ([]schema.RepositoryRecord, error) {
	if rs.db == nil {
		return nil, ErrNoRuns
	}

	quotedTableName := quoteTableName(recordsTable, rs.backend)
	var runID sql.NullInt64
	latest := rebind(rs.backend, fmt.Sprintf(`SELECT MAX(run_id) FROM %s WHERE stage = ?`, quotedTableName))
	if err := rs.db.QueryRow(latest, string(stage)).Scan(&runID); err != nil {
		return nil, fmt.Errorf("failed to find latest %s checkpoint: %w", stage, err)
	}
	if !runID.Valid {
		return nil, fmt.Errorf("%w: no %s checkpoint", ErrNoRuns, stage)
	}

	query := rebind(rs.backend, fmt.Sprintf(`SELECT payload FROM %s WHERE run_id = ? AND stage = ? ORDER BY url`, quotedTableName))
	rows, err := rs.db.Query(query, runID.Int64, string(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []schema.RepositoryRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec schema.RepositoryRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns every run.
func (rs *RunStoreImpl) ListRuns(limit int) ([]schema.RunRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, start_time, end_time, run_duration_ms, repository_count, config_params FROM %s ORDER BY run_id DESC`,
		quoteTableName(runsTable, rs.backend))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		var start, end timeScanner
		var duration sql.NullInt32
		var params sql.NullString
		if err := rows.Scan(&record.RunID, &start, &end, &duration, &record.RepositoryCount, &params); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record.StartTime = start.Time
		if end.Valid {
			record.EndTime = &end.Time
		}
		if duration.Valid {
			record.RunDurationMs = &duration.Int32
		}
		if params.Valid {
			record.ConfigParams = &params.String
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.db == nil {
		return status, nil
	}

	quotedRuns := quoteTableName(runsTable, rs.backend)
	quotedRecords := quoteTableName(recordsTable, rs.backend)
	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedRuns)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		var last, oldest timeScanner
		row := rs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", quotedRuns))
		if err := row.Scan(&status.LastRunID, &last); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime = last.Time

		row = rs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quotedRuns))
		if err := row.Scan(&oldest); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldest.Time

		row = rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(DISTINCT url) FROM %s", quotedRecords))
		if err := row.Scan(&status.TotalRepositories); err != nil {
			return status, fmt.Errorf("failed to count repositories: %w", err)
		}
	}

	for _, table := range []string{runsTable, recordsTable} {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}
