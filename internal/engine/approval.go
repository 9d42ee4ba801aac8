package engine

import (
	"database/sql"
	"fmt"

	"github.com/colefenn/tally/internal/model"
)

// ApprovalStatus is the tally returned by approval operations. Required is
// recomputed from the current membership count on every call, so it can
// change over the life of a chore as members join or leave.
type ApprovalStatus struct {
	ChoreStatus  string   `json:"status"`
	Votes        int      `json:"votes"`
	Required     int      `json:"required"`
	Voters       []string `json:"voters"`
	TotalMembers int      `json:"total_members"`
	Approved     bool     `json:"approved"`
}

// VoteApproval records an approval vote. A duplicate vote is a reportable
// conflict, not an idempotent no-op. If the vote meets quorum and the chore
// is still unapproved, the chore transitions to unclaimed in the same
// transaction that read the tally.
func (e *Engine) VoteApproval(choreID, userID int64) (*ApprovalStatus, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ch, err := scanChoreRow(tx, choreID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}

	var exists int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM approvals WHERE chore_id = ? AND user_id = ?`,
		choreID, userID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check vote: %w", err)
	}
	if exists > 0 {
		return nil, ErrAlreadyVoted
	}

	if _, err := tx.Exec(
		`INSERT INTO approvals (chore_id, user_id) VALUES (?, ?)`,
		choreID, userID,
	); err != nil {
		return nil, fmt.Errorf("insert vote: %w", err)
	}

	st, err := approvalTally(tx, ch)
	if err != nil {
		return nil, err
	}

	if st.Votes >= st.Required && ch.status == model.ChoreUnapproved {
		now := e.now().UTC()
		if _, err := tx.Exec(
			`UPDATE chores SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			model.ChoreUnclaimed, now, choreID, model.ChoreUnapproved,
		); err != nil {
			return nil, fmt.Errorf("approve chore: %w", err)
		}
		st.ChoreStatus = model.ChoreUnclaimed
	}
	st.Approved = st.ChoreStatus != model.ChoreUnapproved

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return st, nil
}

// UnvoteApproval removes an approval vote. Approval is not monotonic: if the
// remaining tally drops below quorum while the chore is still unclaimed, the
// chore falls back to unapproved. A claimed chore is never demoted.
func (e *Engine) UnvoteApproval(choreID, userID int64) (*ApprovalStatus, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ch, err := scanChoreRow(tx, choreID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}

	result, err := tx.Exec(
		`DELETE FROM approvals WHERE chore_id = ? AND user_id = ?`,
		choreID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("delete vote: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}

	st, err := approvalTally(tx, ch)
	if err != nil {
		return nil, err
	}

	if st.Votes < st.Required && ch.status == model.ChoreUnclaimed {
		now := e.now().UTC()
		if _, err := tx.Exec(
			`UPDATE chores SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			model.ChoreUnapproved, now, choreID, model.ChoreUnclaimed,
		); err != nil {
			return nil, fmt.Errorf("demote chore: %w", err)
		}
		st.ChoreStatus = model.ChoreUnapproved
	}
	st.Approved = st.ChoreStatus != model.ChoreUnapproved

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return st, nil
}

// ApprovalTally returns the current approval status of a chore without
// mutating anything.
func (e *Engine) ApprovalTally(choreID int64) (*ApprovalStatus, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ch, err := scanChoreRow(tx, choreID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}

	st, err := approvalTally(tx, ch)
	if err != nil {
		return nil, err
	}
	st.Approved = st.ChoreStatus != model.ChoreUnapproved

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return st, nil
}

// approvalTally reads the vote count, voter emails, and the quorum derived
// from the current membership count, all within the caller's transaction so
// a resulting status write never evaluates a stale quorum size.
func approvalTally(tx *sql.Tx, ch choreRow) (*ApprovalStatus, error) {
	var votes int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM approvals WHERE chore_id = ?`, ch.id,
	).Scan(&votes); err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}

	members, err := countMembers(tx, ch.homeID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	rows, err := tx.Query(
		`SELECT u.email FROM approvals a JOIN users u ON u.id = a.user_id
		 WHERE a.chore_id = ? ORDER BY a.created_at ASC, a.id ASC`,
		ch.id,
	)
	if err != nil {
		return nil, fmt.Errorf("list voters: %w", err)
	}
	defer rows.Close()

	var voters []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan voter: %w", err)
		}
		voters = append(voters, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voters: %w", err)
	}

	return &ApprovalStatus{
		ChoreStatus:  ch.status,
		Votes:        votes,
		Required:     approvalRequired(members),
		Voters:       voters,
		TotalMembers: members,
	}, nil
}
