package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

// CheckRecord is one historical probe result
type CheckRecord struct {
	ID          string            `json:"id"`
	TargetID    int64             `json:"target_id"`
	CheckType   model.CheckType   `json:"check_type"`
	Success     bool              `json:"success"`
	Latency     time.Duration     `json:"latency,omitempty"`
	Message     string            `json:"message,omitempty"`
	FailureKind model.FailureKind `json:"failure_kind,omitempty"`
	CheckedAt   time.Time         `json:"checked_at"`
}

// Store defines the persistence interface for targets, channels and the
// check history
type Store interface {
	// CreateTarget inserts a target and fills in its assigned ID
	CreateTarget(ctx context.Context, t *model.Target) error

	// UpdateTarget rewrites a target's configuration fields
	UpdateTarget(ctx context.Context, t *model.Target) error

	// Get retrieves a target by ID, nil when absent
	Get(ctx context.Context, id int64) (*model.Target, error)

	// ListEnabled retrieves all enabled targets
	ListEnabled(ctx context.Context) ([]*model.Target, error)

	// SetPaused suppresses probing for a target until the given time;
	// nil clears the pause
	SetPaused(ctx context.Context, id int64, until *time.Time) error

	// UpdateCheckResult bumps a target's rolling counters after a check
	UpdateCheckResult(ctx context.Context, targetID int64, success bool, checkedAt time.Time) error

	// CreateChannel inserts a notification channel and fills in its ID
	CreateChannel(ctx context.Context, ch *model.Channel) error

	// LinkChannel attaches a channel to a target
	LinkChannel(ctx context.Context, targetID, channelID int64) error

	// ChannelsFor retrieves the channels linked to a target
	ChannelsFor(ctx context.Context, targetID int64) ([]*model.Channel, error)

	// RecordCheck appends one probe result to the history
	RecordCheck(ctx context.Context, targetID int64, checkType model.CheckType, outcome model.Outcome, checkedAt time.Time) error

	// ListHistory retrieves a target's history, newest first
	ListHistory(ctx context.Context, targetID int64, limit int) ([]*CheckRecord, error)

	// DeleteHistoryBefore drops history rows older than the given time
	DeleteHistoryBefore(ctx context.Context, before time.Time) error

	// Close closes the underlying database
	Close() error
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists. The file is never recreated: counters and history survive
// restarts.
func NewSQLiteStore(logger *zap.Logger, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		logger: logger.Named("storage"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS targets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			check_type TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL DEFAULT 300,
			enabled INTEGER NOT NULL DEFAULT 1,
			required_keywords TEXT,
			forbidden_keywords TEXT,
			max_failures INTEGER NOT NULL DEFAULT 1,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			last_check_time DATETIME,
			last_check_status INTEGER NOT NULL DEFAULT 0,
			paused_until DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS target_channels (
			target_id INTEGER NOT NULL REFERENCES targets(id),
			channel_id INTEGER NOT NULL REFERENCES channels(id),
			PRIMARY KEY (target_id, channel_id)
		);
		CREATE TABLE IF NOT EXISTS check_history (
			id TEXT PRIMARY KEY,
			target_id INTEGER NOT NULL,
			check_type TEXT NOT NULL,
			success INTEGER NOT NULL,
			latency INTEGER,
			message TEXT,
			failure_kind TEXT,
			checked_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_targets_enabled ON targets(enabled);
		CREATE INDEX IF NOT EXISTS idx_check_history_target_id ON check_history(target_id);
		CREATE INDEX IF NOT EXISTS idx_check_history_checked_at ON check_history(checked_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// CreateTarget implements Store.CreateTarget
func (s *SQLiteStore) CreateTarget(ctx context.Context, t *model.Target) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (
			name, address, check_type, interval_seconds, enabled,
			required_keywords, forbidden_keywords, max_failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name,
		t.Address,
		t.CheckType,
		t.IntervalSeconds,
		t.Enabled,
		sql.NullString{String: t.RequiredKeywords, Valid: t.RequiredKeywords != ""},
		sql.NullString{String: t.ForbiddenKeywords, Valid: t.ForbiddenKeywords != ""},
		t.MaxFailures,
	)
	if err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get target id: %w", err)
	}
	t.ID = id
	return nil
}

// UpdateTarget implements Store.UpdateTarget
func (s *SQLiteStore) UpdateTarget(ctx context.Context, t *model.Target) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE targets SET
			name = ?,
			address = ?,
			check_type = ?,
			interval_seconds = ?,
			enabled = ?,
			required_keywords = ?,
			forbidden_keywords = ?,
			max_failures = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		t.Name,
		t.Address,
		t.CheckType,
		t.IntervalSeconds,
		t.Enabled,
		sql.NullString{String: t.RequiredKeywords, Valid: t.RequiredKeywords != ""},
		sql.NullString{String: t.ForbiddenKeywords, Valid: t.ForbiddenKeywords != ""},
		t.MaxFailures,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}
	return nil
}

const targetColumns = `
	id, name, address, check_type, interval_seconds, enabled,
	required_keywords, forbidden_keywords, max_failures,
	success_count, failure_count, last_check_time, last_check_status,
	paused_until, created_at, updated_at`

func scanTarget(scan func(dest ...interface{}) error) (*model.Target, error) {
	var t model.Target
	var required, forbidden sql.NullString
	var lastCheck, pausedUntil sql.NullTime

	err := scan(
		&t.ID,
		&t.Name,
		&t.Address,
		&t.CheckType,
		&t.IntervalSeconds,
		&t.Enabled,
		&required,
		&forbidden,
		&t.MaxFailures,
		&t.SuccessCount,
		&t.FailureCount,
		&lastCheck,
		&t.LastCheckStatus,
		&pausedUntil,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if required.Valid {
		t.RequiredKeywords = required.String
	}
	if forbidden.Valid {
		t.ForbiddenKeywords = forbidden.String
	}
	if lastCheck.Valid {
		t.LastCheckTime = &lastCheck.Time
	}
	if pausedUntil.Valid {
		t.PausedUntil = &pausedUntil.Time
	}
	return &t, nil
}

// Get implements Store.Get
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Target, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+targetColumns+" FROM targets WHERE id = ?", id)

	t, err := scanTarget(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan target: %w", err)
	}
	return t, nil
}

// ListEnabled implements Store.ListEnabled
func (s *SQLiteStore) ListEnabled(ctx context.Context) ([]*model.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+targetColumns+" FROM targets WHERE enabled = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []*model.Target
	for rows.Next() {
		t, err := scanTarget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return targets, nil
}

// SetPaused implements Store.SetPaused
func (s *SQLiteStore) SetPaused(ctx context.Context, id int64, until *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE targets SET paused_until = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sql.NullTime{Time: derefTime(until), Valid: until != nil},
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to set pause: %w", err)
	}
	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// UpdateCheckResult implements Store.UpdateCheckResult
func (s *SQLiteStore) UpdateCheckResult(ctx context.Context, targetID int64, success bool, checkedAt time.Time) error {
	status := model.StatusDown
	column := "failure_count"
	if success {
		status = model.StatusUp
		column = "success_count"
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE targets SET
			`+column+` = `+column+` + 1,
			last_check_time = ?,
			last_check_status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		checkedAt,
		status,
		targetID,
	)
	if err != nil {
		return fmt.Errorf("failed to update check result: %w", err)
	}
	return nil
}

// CreateChannel implements Store.CreateChannel
func (s *SQLiteStore) CreateChannel(ctx context.Context, ch *model.Channel) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (name, kind, endpoint, active) VALUES (?, ?, ?, ?)`,
		ch.Name, ch.Kind, ch.Endpoint, ch.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get channel id: %w", err)
	}
	ch.ID = id
	return nil
}

// LinkChannel implements Store.LinkChannel
func (s *SQLiteStore) LinkChannel(ctx context.Context, targetID, channelID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO target_channels (target_id, channel_id) VALUES (?, ?)`,
		targetID, channelID,
	)
	if err != nil {
		return fmt.Errorf("failed to link channel: %w", err)
	}
	return nil
}

// ChannelsFor implements Store.ChannelsFor
func (s *SQLiteStore) ChannelsFor(ctx context.Context, targetID int64) ([]*model.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.kind, c.endpoint, c.active, c.created_at
		FROM channels c
		JOIN target_channels tc ON tc.channel_id = c.id
		WHERE tc.target_id = ?
		ORDER BY c.id`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []*model.Channel
	for rows.Next() {
		var ch model.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Kind, &ch.Endpoint, &ch.Active, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return channels, nil
}

// RecordCheck implements Store.RecordCheck
func (s *SQLiteStore) RecordCheck(ctx context.Context, targetID int64, checkType model.CheckType, outcome model.Outcome, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_history (
			id, target_id, check_type, success, latency, message, failure_kind, checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		targetID,
		checkType,
		outcome.Success,
		sql.NullInt64{Int64: int64(outcome.Latency), Valid: outcome.Latency != 0},
		sql.NullString{String: outcome.Message, Valid: outcome.Message != ""},
		sql.NullString{String: string(outcome.Kind), Valid: outcome.Kind != ""},
		checkedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record check: %w", err)
	}
	return nil
}

// ListHistory implements Store.ListHistory
func (s *SQLiteStore) ListHistory(ctx context.Context, targetID int64, limit int) ([]*CheckRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_id, check_type, success, latency, message, failure_kind, checked_at
		FROM check_history
		WHERE target_id = ?
		ORDER BY checked_at DESC
		LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list check history: %w", err)
	}
	defer rows.Close()

	var records []*CheckRecord
	for rows.Next() {
		record := &CheckRecord{}
		var latency sql.NullInt64
		var message, failureKind sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.TargetID,
			&record.CheckType,
			&record.Success,
			&latency,
			&message,
			&failureKind,
			&record.CheckedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check record: %w", err)
		}

		if latency.Valid {
			record.Latency = time.Duration(latency.Int64)
		}
		if message.Valid {
			record.Message = message.String
		}
		if failureKind.Valid {
			record.FailureKind = model.FailureKind(failureKind.String)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// DeleteHistoryBefore implements Store.DeleteHistoryBefore
func (s *SQLiteStore) DeleteHistoryBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM check_history WHERE checked_at < ?", before)
	if err != nil {
		return fmt.Errorf("failed to delete check history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old check history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
