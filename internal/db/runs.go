package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motionfit/internal/timeseries"
)

// Series kinds stored in fit_series.
const (
	SeriesVelocity = "velocity"
	SeriesSteering = "steering"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("db: run not found")

// Run is one fit-motion invocation.
type Run struct {
	ID                 string
	Version            string
	StartedAt          time.Time
	FinishedAt         time.Time
	ConfigJSON         string
	RotationsPath      string
	AccelerationsPath  string
	LocationsPath      string
	RotationsCount     int
	AccelerationsCount int
	LocationsCount     int
	WindowsCount       int
	FittedWindows      int
	SummaryJSON        string
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// WindowRecord is the stored diagnostic of one fitted or skipped window.
type WindowRecord struct {
	Index         int
	StartLocation int
	EndLocation   int
	Locations     int
	Events        int
	Iterations    int
	Objective     float64
	Converged     bool
	Skipped       bool
	Status        string
	// Params is the flat calibration vector, empty for skipped windows.
	Params []float64
}

// RunRecord is everything written for one run.
type RunRecord struct {
	Run        Run
	Windows    []WindowRecord
	Velocities []timeseries.TimedScalar
	Steering   []timeseries.TimedScalar
}

// RecordRun stores rec in a single transaction and returns the run id,
// generating one when rec.Run.ID is empty.
func (db *DB) RecordRun(ctx context.Context, rec *RunRecord) (string, error) {
	run := rec.Run
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.SummaryJSON == "" {
		run.SummaryJSON = "{}"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fit_runs (run_id, version, started_at, finished_at, config_json,
			rotations_path, accelerations_path, locations_path,
			rotations_count, accelerations_count, locations_count,
			windows_count, fitted_windows, summary_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Version, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.ConfigJSON,
		run.RotationsPath, run.AccelerationsPath, run.LocationsPath,
		run.RotationsCount, run.AccelerationsCount, run.LocationsCount,
		run.WindowsCount, run.FittedWindows, run.SummaryJSON)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := insertWindows(ctx, tx, run.ID, rec.Windows); err != nil {
		return "", err
	}
	if err := insertSeries(ctx, tx, run.ID, SeriesVelocity, rec.Velocities); err != nil {
		return "", err
	}
	if err := insertSeries(ctx, tx, run.ID, SeriesSteering, rec.Steering); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

func insertWindows(ctx context.Context, tx *sql.Tx, runID string, windows []WindowRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fit_windows (run_id, window_index, start_location, end_location,
			locations, events, iterations, objective, converged, skipped, status, params_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare window insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range windows {
		params := w.Params
		if params == nil {
			params = []float64{}
		}
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode window %d params: %w", w.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, w.Index, w.StartLocation, w.EndLocation,
			w.Locations, w.Events, w.Iterations, w.Objective, w.Converged, w.Skipped,
			w.Status, string(paramsJSON)); err != nil {
			return fmt.Errorf("failed to insert window %d: %w", w.Index, err)
		}
	}
	return nil
}

func insertSeries(ctx context.Context, tx *sql.Tx, runID, kind string, series []timeseries.TimedScalar) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fit_series (run_id, kind, seq, time_usec, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", kind, err)
	}
	defer stmt.Close()

	for i, s := range series {
		if _, err := stmt.ExecContext(ctx, runID, kind, i, s.TimeUsec, s.Value); err != nil {
			return fmt.Errorf("failed to insert %s sample %d: %w", kind, i, err)
		}
	}
	return nil
}

const runColumns = `run_id, version, started_at, finished_at, config_json,
	rotations_path, accelerations_path, locations_path,
	rotations_count, accelerations_count, locations_count,
	windows_count, fitted_windows, summary_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Version, &r.StartedAt, &r.FinishedAt, &r.ConfigJSON,
		&r.RotationsPath, &r.AccelerationsPath, &r.LocationsPath,
		&r.RotationsCount, &r.AccelerationsCount, &r.LocationsCount,
		&r.WindowsCount, &r.FittedWindows, &r.SummaryJSON)
	return r, err
}

// ListRuns returns all runs, most recent first. limit <= 0 returns all.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM fit_runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (db *DB) GetRun(ctx context.Context, runID string) (Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM fit_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return r, nil
}

// RunWindows returns the window diagnostics of a run in window order.
func (db *DB) RunWindows(ctx context.Context, runID string) ([]WindowRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT window_index, start_location, end_location, locations, events,
			iterations, objective, converged, skipped, status, params_json
		FROM fit_windows WHERE run_id = ? ORDER BY window_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}
	defer rows.Close()

	var out []WindowRecord
	for rows.Next() {
		var (
			w          WindowRecord
			paramsJSON string
		)
		if err := rows.Scan(&w.Index, &w.StartLocation, &w.EndLocation, &w.Locations, &w.Events,
			&w.Iterations, &w.Objective, &w.Converged, &w.Skipped, &w.Status, &paramsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &w.Params); err != nil {
			return nil, fmt.Errorf("failed to decode window %d params: %w", w.Index, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// RunSeries returns the stored output series of the given kind.
func (db *DB) RunSeries(ctx context.Context, runID, kind string) ([]timeseries.TimedScalar, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT time_usec, value FROM fit_series WHERE run_id = ? AND kind = ? ORDER BY seq`, runID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s series: %w", kind, err)
	}
	defer rows.Close()

	var out []timeseries.TimedScalar
	for rows.Next() {
		var s timeseries.TimedScalar
		if err := rows.Scan(&s.TimeUsec, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan %s sample: %w", kind, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteRun removes a run together with its windows and series.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM fit_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
