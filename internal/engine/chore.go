package engine

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/colefenn/tally/internal/model"
	"github.com/colefenn/tally/internal/points"
)

// Claim assigns an unclaimed chore to the user. The transition is a single
// conditional update gated by affected rows, so among concurrent claimants
// exactly one succeeds and the rest get ErrConflict.
func (e *Engine) Claim(choreID, userID int64) error {
	now := e.now().UTC()
	result, err := e.db.Exec(
		`UPDATE chores SET status = ?, assignee_id = ?, claimed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		model.ChoreClaimed, userID, now, now, choreID, model.ChoreUnclaimed,
	)
	if err != nil {
		return fmt.Errorf("claim chore: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM chores WHERE id = ?`, choreID).Scan(&exists); err != nil {
		return fmt.Errorf("check chore: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// Complete marks a claimed chore complete and credits the assignee's
// membership balance in the same transaction. The award is the dynamic
// value locked in at claim time, recomputed from created_at and claimed_at
// rather than the live clock.
func (e *Engine) Complete(choreID, userID int64, photoRef *string) (int, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ch, err := scanChoreRow(tx, choreID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get chore: %w", err)
	}

	if ch.status != model.ChoreClaimed {
		return 0, ErrConflict
	}
	if !ch.assigneeID.Valid || ch.assigneeID.Int64 != userID {
		return 0, ErrForbidden
	}
	if !ch.claimedAt.Valid {
		return 0, fmt.Errorf("claimed chore %d has no claimed_at", choreID)
	}

	awarded := points.Awarded(ch.points, ch.createdAt, ch.claimedAt.Time)

	now := e.now().UTC()
	result, err := tx.Exec(
		`UPDATE chores SET status = ?, completed_at = ?, photo_ref = COALESCE(?, photo_ref), updated_at = ?
		 WHERE id = ? AND status = ?`,
		model.ChoreComplete, now, photoRef, now, choreID, model.ChoreClaimed,
	)
	if err != nil {
		return 0, fmt.Errorf("complete chore: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return 0, ErrConflict
	}

	if _, err := tx.Exec(
		`UPDATE memberships SET points = points + ?, updated_at = ? WHERE home_id = ? AND user_id = ?`,
		awarded, now, ch.homeID, userID,
	); err != nil {
		return 0, fmt.Errorf("credit points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return awarded, nil
}

// reverseCompletion reverts a completed chore to claimed, clears
// completed_at, and claws back the exact award credited at completion,
// floored at zero. The conditional update makes it idempotent: a chore
// already reverted by an earlier dispute is left alone, ledger included.
func reverseCompletion(tx *sql.Tx, ch choreRow, now time.Time) error {
	result, err := tx.Exec(
		`UPDATE chores SET status = ?, completed_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		model.ChoreClaimed, now, ch.id, model.ChoreComplete,
	)
	if err != nil {
		return fmt.Errorf("revert chore: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil
	}

	if !ch.assigneeID.Valid || !ch.claimedAt.Valid {
		return nil
	}
	awarded := points.Awarded(ch.points, ch.createdAt, ch.claimedAt.Time)

	if _, err := tx.Exec(
		`UPDATE memberships SET points = MAX(0, points - ?), updated_at = ? WHERE home_id = ? AND user_id = ?`,
		awarded, now, ch.homeID, ch.assigneeID.Int64,
	); err != nil {
		return fmt.Errorf("claw back points: %w", err)
	}
	return nil
}
