package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RegisterProcess records a launched external process. Re-registering a PID
// replaces the previous row since the kernel may recycle PIDs.
func (s *Store) RegisterProcess(ctx context.Context, proc Process) error {
	if proc.PID <= 0 {
		return fmt.Errorf("register process: invalid pid %d", proc.PID)
	}
	started := proc.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO processes (pid, pgid, role, run_id, marker, command, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		proc.PID, proc.PGID, proc.Role, proc.RunID, proc.Marker, proc.Command, formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("register process %d: %w", proc.PID, err)
	}
	return nil
}

// RemoveProcess deletes a registry row. Missing rows are ignored.
func (s *Store) RemoveProcess(ctx context.Context, pid int) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM processes WHERE pid = ?`, pid); err != nil {
		return fmt.Errorf("remove process %d: %w", pid, err)
	}
	return nil
}

// ListProcesses returns every registered process, oldest first.
func (s *Store) ListProcesses(ctx context.Context) ([]Process, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT pid, pgid, role, run_id, marker, command, started_at FROM processes ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()

	var out []Process
	for rows.Next() {
		var (
			proc    Process
			started sql.NullString
		)
		if err := rows.Scan(&proc.PID, &proc.PGID, &proc.Role, &proc.RunID, &proc.Marker, &proc.Command, &started); err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		proc.StartedAt = parseTime(started)
		out = append(out, proc)
	}
	return out, rows.Err()
}
