package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"marketplace_watcher/models"
)

// SQLiteStore keeps operational data: batch runs, per-monitor outcomes,
// run logs and the command queue.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_runs (
		id INTEGER PRIMARY KEY,
		trigger_source TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		state TEXT,
		total_monitors INTEGER DEFAULT 0,
		success_count INTEGER DEFAULT 0,
		error_count INTEGER DEFAULT 0,
		listings_seen INTEGER DEFAULT 0,
		listings_changed INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS monitor_run_results (
		id INTEGER PRIMARY KEY,
		run_id INTEGER NOT NULL,
		monitor_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_count INTEGER DEFAULT 0,
		changed_count INTEGER DEFAULT 0,
		error TEXT,
		recorded_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES batch_runs(id)
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		monitor_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON batch_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_results_monitor ON monitor_run_results(monitor_id, recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.BatchRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO batch_runs (trigger_source, started_at, state)
		VALUES (?, ?, ?)`,
		run.Trigger, run.StartedAt, run.State)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) FinishRun(run *models.BatchRun) error {
	_, err := s.db.Exec(`
		UPDATE batch_runs SET finished_at = ?, state = ?, total_monitors = ?, success_count = ?,
			error_count = ?, listings_seen = ?, listings_changed = ?, error = ?
		WHERE id = ?`,
		run.FinishedAt, run.State, run.TotalMonitors, run.SuccessCount,
		run.ErrorCount, run.ListingsSeen, run.ListingsChanged, nullString(run.Error), run.ID)
	return err
}

func (s *SQLiteStore) RecordMonitorResult(rec *models.MonitorRunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO monitor_run_results (run_id, monitor_id, status, total_count, changed_count, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.MonitorID, rec.Status, rec.TotalCount, rec.ChangedCount, nullString(rec.Error), rec.RecordedAt)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.BatchRun, error) {
	var run models.BatchRun
	var errMsg sql.NullString
	err := s.db.QueryRow(`
		SELECT id, trigger_source, started_at, finished_at, state, total_monitors, success_count,
			error_count, listings_seen, listings_changed, error
		FROM batch_runs WHERE id = ?`, id).Scan(
		&run.ID, &run.Trigger, &run.StartedAt, &run.FinishedAt, &run.State, &run.TotalMonitors,
		&run.SuccessCount, &run.ErrorCount, &run.ListingsSeen, &run.ListingsChanged, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Error = errMsg.String
	return &run, nil
}

func (s *SQLiteStore) GetMonitorResults(runID int64) ([]models.MonitorRunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, monitor_id, status, total_count, changed_count, error, recorded_at
		FROM monitor_run_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.MonitorRunRecord
	for rows.Next() {
		var rec models.MonitorRunRecord
		var errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.MonitorID, &rec.Status, &rec.TotalCount,
			&rec.ChangedCount, &errMsg, &rec.RecordedAt); err != nil {
			return nil, err
		}
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, monitorID string) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, message, monitor_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, monitorID)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.RunLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, monitor_id
		FROM run_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var l models.RunLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.MonitorID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// PruneLogs deletes run logs older than cutoff.
func (s *SQLiteStore) PruneLogs(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM run_logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) error {
	var raw any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return err
		}
		raw = string(data)
	}
	_, err := s.db.Exec(`INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`, cmd, raw, time.Now())
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
