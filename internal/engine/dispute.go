package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/colefenn/tally/internal/model"
)

// disputeWindow is the business timeout: a dispute still pending this long
// after creation resolves to overruled, favoring the chore-doer.
const disputeWindow = 24 * time.Hour

// disputeRow is the dispute plus its chore, read inside one transaction.
type disputeRow struct {
	id        int64
	status    string
	createdAt time.Time
	chore     choreRow
}

// Resolution records a dispute that reached a terminal status, with enough
// context for callers to notify the affected home.
type Resolution struct {
	DisputeID int64
	ChoreID   int64
	HomeID    int64
	Status    string
}

// CreateDispute opens a pending dispute against a chore. The disputer must
// be a member of the chore's home. Chore status is deliberately not
// guarded: a dispute may be raised at any point in the chore's life.
func (e *Engine) CreateDispute(choreID, disputerID int64, reason string, imageRef *string) (*model.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrInvalidInput
	}

	var homeID int64
	err := e.db.QueryRow(`SELECT home_id FROM chores WHERE id = ?`, choreID).Scan(&homeID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}

	var member int
	if err := e.db.QueryRow(
		`SELECT COUNT(*) FROM memberships WHERE home_id = ? AND user_id = ?`,
		homeID, disputerID,
	).Scan(&member); err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member == 0 {
		return nil, ErrForbidden
	}

	result, err := e.db.Exec(
		`INSERT INTO disputes (chore_id, disputer_id, reason, image_ref, created_at) VALUES (?, ?, ?, ?, ?)`,
		choreID, disputerID, reason, imageRef, e.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert dispute: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var d model.Dispute
	var image sql.NullString
	err = e.db.QueryRow(
		`SELECT id, chore_id, disputer_id, reason, image_ref, status, created_at FROM disputes WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.ChoreID, &d.DisputerID, &d.Reason, &image, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get dispute: %w", err)
	}
	if image.Valid {
		d.ImageRef = &image.String
	}
	return &d, nil
}

// VoteDispute records or overwrites a member's vote on a pending dispute
// and re-evaluates resolution in the same transaction. The chore's current
// assignee cannot vote on a dispute against their own chore. The returned
// status is empty while the dispute stays pending.
func (e *Engine) VoteDispute(disputeID, userID int64, decision string) (string, error) {
	if decision != model.VoteSustain && decision != model.VoteOverrule {
		return "", ErrInvalidInput
	}

	tx, err := e.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDisputeRow(tx, disputeID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get dispute: %w", err)
	}

	if d.chore.assigneeID.Valid && d.chore.assigneeID.Int64 == userID {
		return "", ErrForbidden
	}
	if d.status != model.DisputePending {
		return "", ErrConflict
	}

	if _, err := tx.Exec(
		`INSERT INTO dispute_votes (dispute_id, user_id, vote) VALUES (?, ?, ?)
		 ON CONFLICT(dispute_id, user_id) DO UPDATE SET vote = excluded.vote, updated_at = CURRENT_TIMESTAMP`,
		disputeID, userID, decision,
	); err != nil {
		return "", fmt.Errorf("upsert vote: %w", err)
	}

	resolved, err := e.evaluate(tx, d)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return resolved, nil
}

// UnvoteDispute removes a member's vote from a pending dispute and
// re-evaluates resolution. Resolved disputes are terminal; their votes are
// part of the record and cannot be withdrawn.
func (e *Engine) UnvoteDispute(disputeID, userID int64) (string, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDisputeRow(tx, disputeID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get dispute: %w", err)
	}
	if d.status != model.DisputePending {
		return "", ErrConflict
	}

	result, err := tx.Exec(
		`DELETE FROM dispute_votes WHERE dispute_id = ? AND user_id = ?`,
		disputeID, userID,
	)
	if err != nil {
		return "", fmt.Errorf("delete vote: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return "", ErrNotFound
	}

	resolved, err := e.evaluate(tx, d)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return resolved, nil
}

// SweepDisputes re-evaluates every pending dispute. This is the only path
// by which a dispute with no votes still resolves: once the 24-hour window
// passes, the next sweep overrules it. Failures on one dispute are logged
// and do not abort the sweep.
func (e *Engine) SweepDisputes(ctx context.Context) ([]Resolution, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id FROM disputes WHERE status = ? ORDER BY created_at ASC`,
		model.DisputePending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending disputes: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan dispute id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending disputes: %w", err)
	}

	var resolutions []Resolution
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return resolutions, err
		}
		res, err := e.resolveOne(id)
		if err != nil {
			e.logger.Warn("dispute sweep: evaluate failed", "dispute_id", id, "error", err)
			continue
		}
		if res != nil {
			resolutions = append(resolutions, *res)
		}
	}
	return resolutions, nil
}

func (e *Engine) resolveOne(disputeID int64) (*Resolution, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := scanDisputeRow(tx, disputeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dispute: %w", err)
	}

	resolved, err := e.evaluate(tx, d)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if resolved == "" {
		return nil, nil
	}
	return &Resolution{
		DisputeID: d.id,
		ChoreID:   d.chore.id,
		HomeID:    d.chore.homeID,
		Status:    resolved,
	}, nil
}

func scanDisputeRow(tx *sql.Tx, disputeID int64) (disputeRow, error) {
	var d disputeRow
	err := tx.QueryRow(
		`SELECT d.id, d.status, d.created_at,
		        c.id, c.home_id, c.points, c.status, c.assignee_id, c.created_at, c.claimed_at
		 FROM disputes d
		 JOIN chores c ON c.id = d.chore_id
		 WHERE d.id = ?`,
		disputeID,
	).Scan(
		&d.id, &d.status, &d.createdAt,
		&d.chore.id, &d.chore.homeID, &d.chore.points, &d.chore.status,
		&d.chore.assigneeID, &d.chore.createdAt, &d.chore.claimedAt,
	)
	return d, err
}

// evaluate applies the resolution rules to a pending dispute within the
// caller's transaction and returns the terminal status reached, or "" if
// the dispute stays pending.
//
// Order matters: past the 24-hour window the dispute is overruled
// regardless of tally, except that a sustain quorum met at the same moment
// wins over the timeout.
func (e *Engine) evaluate(tx *sql.Tx, d disputeRow) (string, error) {
	if d.status != model.DisputePending {
		return "", nil
	}

	var sustain, overrule int
	if err := tx.QueryRow(
		`SELECT
		   COUNT(CASE WHEN vote = ? THEN 1 END),
		   COUNT(CASE WHEN vote = ? THEN 1 END)
		 FROM dispute_votes WHERE dispute_id = ?`,
		model.VoteSustain, model.VoteOverrule, d.id,
	).Scan(&sustain, &overrule); err != nil {
		return "", fmt.Errorf("count votes: %w", err)
	}

	// Eligible voters: home members minus the accused assignee.
	var eligible int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM memberships WHERE home_id = ? AND user_id != COALESCE(?, -1)`,
		d.chore.homeID, d.chore.assigneeID,
	).Scan(&eligible); err != nil {
		return "", fmt.Errorf("count eligible voters: %w", err)
	}
	required := disputeRequired(eligible)

	now := e.now().UTC()
	var resolved string
	switch {
	case now.Sub(d.createdAt) >= disputeWindow:
		if sustain >= required {
			resolved = model.DisputeSustained
		} else {
			resolved = model.DisputeOverruled
		}
	case sustain >= required:
		resolved = model.DisputeSustained
	case overrule >= required:
		resolved = model.DisputeOverruled
	default:
		return "", nil
	}

	result, err := tx.Exec(
		`UPDATE disputes SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		resolved, now, d.id, model.DisputePending,
	)
	if err != nil {
		return "", fmt.Errorf("resolve dispute: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		// Resolved concurrently; terminal states are never rewritten.
		return "", nil
	}

	if resolved == model.DisputeSustained {
		if err := reverseCompletion(tx, d.chore, now); err != nil {
			return "", err
		}
	}
	return resolved, nil
}
