package store

import (
	"context"
	"errors"
	"fmt"
)

// WriteRun inserts a run and its tasks in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing the same run
// twice is a no-op. Another run with an already used seq fails.
func (s *Store) WriteRun(ctx context.Context, run Run) (err error) {
	if run.ID == "" {
		return errors.New("write run: empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, mode, prompt, context, hidden_size, state_digest,
		 verification_status, payload_hash, signature, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Seq,
		run.Mode,
		run.Prompt,
		run.Context,
		run.HiddenSize,
		run.StateDigest,
		run.VerificationStatus,
		run.PayloadHash,
		run.Signature,
		run.Result,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run: rows affected: %w", err)
	}
	if inserted == 0 {
		return tx.Commit()
	}

	for _, task := range run.Tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (run_id, position, name, payload_hash)
			VALUES (?, ?, ?, ?)
		`, run.ID, task.Position, task.Name, task.PayloadHash)
		if err != nil {
			return fmt.Errorf("write run: task %d: %w", task.Position, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// SaveSnapshot stores the engine state taken after run seq. Saving the same
// seq again replaces the vector.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.HiddenSize != len(snap.Vector) {
		return fmt.Errorf("save snapshot: hidden size %d does not match vector length %d", snap.HiddenSize, len(snap.Vector))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_snapshots (seq, hidden_size, vector)
		VALUES (?, ?, ?)
		ON CONFLICT(seq) DO UPDATE SET hidden_size = excluded.hidden_size, vector = excluded.vector
	`, snap.Seq, snap.HiddenSize, encodeVector(snap.Vector))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
