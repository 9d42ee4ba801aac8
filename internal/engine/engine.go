// Package engine owns the chore lifecycle: the status state machine, the
// approval quorum that unlocks a chore for claiming, the dispute vote and
// 24-hour timeout that can reverse a completion, and the point credits and
// clawbacks those transitions apply to the membership ledger. Every
// transition that touches more than one row runs inside a single
// transaction, and status changes are conditional updates gated by affected
// row count so concurrent callers cannot apply the same transition twice.
package engine

import (
	"database/sql"
	"log/slog"
	"time"
)

type Engine struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// choreRow is the snapshot of a chore read inside a transition transaction.
type choreRow struct {
	id         int64
	homeID     int64
	points     int
	status     string
	assigneeID sql.NullInt64
	createdAt  time.Time
	claimedAt  sql.NullTime
}

func scanChoreRow(tx *sql.Tx, choreID int64) (choreRow, error) {
	var ch choreRow
	err := tx.QueryRow(
		`SELECT id, home_id, points, status, assignee_id, created_at, claimed_at
		 FROM chores WHERE id = ?`,
		choreID,
	).Scan(&ch.id, &ch.homeID, &ch.points, &ch.status, &ch.assigneeID, &ch.createdAt, &ch.claimedAt)
	return ch, err
}

func countMembers(tx *sql.Tx, homeID int64) (int, error) {
	var count int
	err := tx.QueryRow(`SELECT COUNT(*) FROM memberships WHERE home_id = ?`, homeID).Scan(&count)
	return count, err
}
