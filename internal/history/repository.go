// Package history records simulator runs in the runs table so that soak
// tests can be compared after the process exits.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500

	// timeLayout is fixed-width so started_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Run is one simulator invocation and its aggregate counters.
type Run struct {
	ID         string
	Profile    string
	Broker     string
	Devices    int
	Interval   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     Status
	Stats      simulator.StatsSnapshot
	Error      string
}

// Duration returns how long the run lasted, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Filter controls which runs List returns.
type Filter struct {
	Profile string // optional
	Status  Status // optional
	Limit   int    // default 20, max 500
}

// Repository defines the run history operations.
type Repository interface {
	Start(ctx context.Context, run *Run) error
	Finish(ctx context.Context, id string, status Status, stats simulator.StatsSnapshot, runErr error) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter Filter) ([]Run, error)
}

// SQLiteRepository stores runs in SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a run history repository over a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Start inserts a running row. ID and StartedAt are generated if empty.
func (r *SQLiteRepository) Start(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = "run-" + uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now().UTC()
	}
	run.Status = StatusRunning

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, profile, broker, devices, interval_ms, started_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Profile, run.Broker, run.Devices,
		run.Interval.Milliseconds(),
		run.StartedAt.UTC().Format(timeLayout),
		string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// Finish stamps the end time, final status and counters of a run.
func (r *SQLiteRepository) Finish(ctx context.Context, id string, status Status, stats simulator.StatsSnapshot, runErr error) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var errText any
	if runErr != nil {
		errText = runErr.Error()
	}

	// #nosec G115 -- counters are far below MaxInt64
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, ticks = ?, succeeded = ?, failed = ?,
		 not_connected = ?, connect_attempts = ?, connect_failures = ?, error = ?
		 WHERE id = ?`,
		r.now().UTC().Format(timeLayout), string(status),
		int64(stats.Ticks), int64(stats.Succeeded), int64(stats.Failed),
		int64(stats.NotConnected), int64(stats.ConnectAttempts), int64(stats.ConnectFailures),
		errText, id,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const selectRuns = `SELECT id, profile, broker, devices, interval_ms, started_at, finished_at, status,
	ticks, succeeded, failed, not_connected, connect_attempts, connect_failures, error FROM runs`

// Get returns a single run.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns runs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	var conditions []string
	var args []any
	if filter.Profile != "" {
		conditions = append(conditions, "profile = ?")
		args = append(args, filter.Profile)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := selectRuns
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                     Run
		intervalMS              int64
		startedAt, status       string
		finishedAt, errText     sql.NullString
		ticks, ok, failed, nc   int64
		attempts, connectFailed int64
	)
	err := s.Scan(&run.ID, &run.Profile, &run.Broker, &run.Devices, &intervalMS,
		&startedAt, &finishedAt, &status,
		&ticks, &ok, &failed, &nc, &attempts, &connectFailed, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Interval = time.Duration(intervalMS) * time.Millisecond
	run.Status = Status(status)
	run.Error = errText.String

	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parsing run start %q: %w", startedAt, err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
			return nil, fmt.Errorf("parsing run finish %q: %w", finishedAt.String, err)
		}
	}

	// #nosec G115 -- columns are written from unsigned counters
	run.Stats = simulator.StatsSnapshot{
		Ticks:           uint64(ticks),
		Succeeded:       uint64(ok),
		Failed:          uint64(failed),
		NotConnected:    uint64(nc),
		ConnectAttempts: uint64(attempts),
		ConnectFailures: uint64(connectFailed),
	}
	return &run, nil
}
