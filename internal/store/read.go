package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const runColumns = `id, seq, mode, prompt, context, hidden_size, state_digest,
	verification_status, payload_hash, signature, result`

// ReadRun returns a run with its tasks.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, err
	}
	if err := s.attachTasks(ctx, []*Run{&run}); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns runs matching filter ordered by seq ASC, each with its
// tasks. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "verification_status = ?")
		args = append(args, filter.Status)
	}
	if filter.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, filter.AfterSeq)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	// Release the single connection before the task queries.
	rows.Close()

	ptrs := make([]*Run, len(runs))
	for i := range runs {
		ptrs[i] = &runs[i]
	}
	if err := s.attachTasks(ctx, ptrs); err != nil {
		return nil, err
	}
	return runs, nil
}

// LastSeq returns the highest run seq, or 0 for an empty store.
// Used to resume the logical clock from the correct position.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// LatestSnapshot returns the snapshot with the highest seq.
// The boolean is false when no snapshot has been saved.
func (s *Store) LatestSnapshot(ctx context.Context) (Snapshot, bool, error) {
	var (
		snap Snapshot
		blob []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, hidden_size, vector
		FROM state_snapshots
		ORDER BY seq DESC
		LIMIT 1
	`).Scan(&snap.Seq, &snap.HiddenSize, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	snap.Vector, err = decodeVector(blob, snap.HiddenSize)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot %d: %w", snap.Seq, err)
	}
	return snap, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Mode,
		&run.Prompt,
		&run.Context,
		&run.HiddenSize,
		&run.StateDigest,
		&run.VerificationStatus,
		&run.PayloadHash,
		&run.Signature,
		&run.Result,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// attachTasks loads the task lists of runs, ordered by position.
func (s *Store) attachTasks(ctx context.Context, runs []*Run) error {
	for _, run := range runs {
		rows, err := s.db.QueryContext(ctx, `
			SELECT position, name, payload_hash
			FROM tasks
			WHERE run_id = ?
			ORDER BY position ASC
		`, run.ID)
		if err != nil {
			return fmt.Errorf("query tasks for %s: %w", run.ID, err)
		}

		tasks := []Task{}
		for rows.Next() {
			var task Task
			if err := rows.Scan(&task.Position, &task.Name, &task.PayloadHash); err != nil {
				rows.Close()
				return fmt.Errorf("scan task: %w", err)
			}
			tasks = append(tasks, task)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterate tasks for %s: %w", run.ID, err)
		}
		run.Tasks = tasks
	}
	return nil
}
