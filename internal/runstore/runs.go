package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, track_id, source_url, keep, status, segments_total, segments_completed,
    segments_degraded, buffered_bytes, error_message, buffer_path, created_at, updated_at,
    ready_at, finished_at`

// CreateRun inserts a new run in the pending state.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.ID == "" || run.TrackID == "" {
		return errors.New("run id and track id are required")
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = StatusPending
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, track_id, source_url, keep, status, buffer_path, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TrackID, run.SourceURL, run.Keep, run.Status,
		nullableString(run.BufferPath), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateProgress records the current status and counters of an active run.
// The ready timestamp is set the first time the status reaches ready.
func (s *Store) UpdateProgress(ctx context.Context, id string, p Progress) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, segments_total = ?, segments_completed = ?, buffered_bytes = ?,
            updated_at = ?,
            ready_at = CASE WHEN ready_at IS NULL AND ? IN ('ready', 'streaming') THEN ? ELSE ready_at END
        WHERE id = ?`,
		p.Status, p.SegmentsTotal, p.SegmentsCompleted, p.BufferedBytes, now, p.Status, now, id,
	)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return requireRow(res, id)
}

// RecordDegraded stores a skipped segment and bumps the run's degraded count.
// Recording the same segment twice is a no-op.
func (s *Store) RecordDegraded(ctx context.Context, runID string, index int, reason string) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin degraded tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO degraded_segments (run_id, segment_index, reason, created_at) VALUES (?, ?, ?, ?)`,
		runID, index, reason, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert degraded segment: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET segments_degraded = segments_degraded + 1, updated_at = ? WHERE id = ?`,
			formatTime(time.Now()), runID,
		); err != nil {
			return fmt.Errorf("bump degraded count: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit degraded segment: %w", err)
	}
	return nil
}

// FinishRun moves a run into a terminal status.
func (s *Store) FinishRun(ctx context.Context, id string, status Status, message string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish run: status %q is not terminal", status)
	}
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(message), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, id)
}

// MarkInterrupted closes every run that is still active. It is called when a
// new instance replaces an old one. Returns the number of runs closed.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_message = COALESCE(error_message, ?), updated_at = ?, finished_at = ?
        WHERE status NOT IN ('finished', 'failed', 'producer_died', 'timed_out', 'cancelled', 'interrupted')`,
		StatusInterrupted, InterruptedReason, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// GetRun fetches a run by identifier. It returns nil, nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestForTrack returns the most recent run for a track, or nil.
func (s *Store) LatestForTrack(ctx context.Context, trackID string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs WHERE track_id = ? ORDER BY created_at DESC LIMIT 1`, trackID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for track: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first. A non-positive limit returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DegradedSegments lists skipped segments for a run ordered by index.
func (s *Store) DegradedSegments(ctx context.Context, runID string) ([]DegradedSegment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT segment_index, reason, created_at FROM degraded_segments WHERE run_id = ? ORDER BY segment_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list degraded segments: %w", err)
	}
	defer rows.Close()

	var out []DegradedSegment
	for rows.Next() {
		var (
			seg     DegradedSegment
			created sql.NullString
		)
		if err := rows.Scan(&seg.Index, &seg.Reason, &created); err != nil {
			return nil, fmt.Errorf("scan degraded segment: %w", err)
		}
		seg.CreatedAt = parseTime(created)
		out = append(out, seg)
	}
	return out, rows.Err()
}

// PruneFinished deletes terminal runs older than the cutoff and returns how
// many were removed.
func (s *Store) PruneFinished(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM runs WHERE finished_at IS NOT NULL AND finished_at < ?`, formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                                   Run
		errMsg, bufferPath                    sql.NullString
		created, updated, readyAt, finishedAt sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.TrackID, &run.SourceURL, &run.Keep, &run.Status,
		&run.SegmentsTotal, &run.SegmentsCompleted, &run.SegmentsDegraded, &run.BufferedBytes,
		&errMsg, &bufferPath, &created, &updated, &readyAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	run.ErrorMessage = errMsg.String
	run.BufferPath = bufferPath.String
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	run.ReadyAt = parseTime(readyAt)
	run.FinishedAt = parseTime(finishedAt)
	return &run, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
