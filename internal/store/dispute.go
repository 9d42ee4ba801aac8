package store

import (
	"database/sql"
	"fmt"

	"github.com/colefenn/tally/internal/model"
)

type DisputeStore struct {
	db *sql.DB
}

func NewDisputeStore(db *sql.DB) *DisputeStore {
	return &DisputeStore{db: db}
}

func scanDispute(scanner interface{ Scan(...any) error }) (*model.Dispute, error) {
	var d model.Dispute
	var imageRef sql.NullString
	var resolvedAt sql.NullTime

	err := scanner.Scan(
		&d.ID, &d.ChoreID, &d.DisputerID, &d.Reason, &imageRef,
		&d.Status, &d.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if imageRef.Valid {
		d.ImageRef = &imageRef.String
	}
	if resolvedAt.Valid {
		d.ResolvedAt = &resolvedAt.Time
	}
	return &d, nil
}

const disputeCols = `id, chore_id, disputer_id, reason, image_ref, status, created_at, resolved_at`

func (s *DisputeStore) GetByID(id int64) (*model.Dispute, error) {
	row := s.db.QueryRow(`SELECT `+disputeCols+` FROM disputes WHERE id = ?`, id)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dispute: %w", err)
	}
	return d, nil
}

func (s *DisputeStore) ListByChore(choreID int64) ([]model.Dispute, error) {
	rows, err := s.db.Query(
		`SELECT `+disputeCols+` FROM disputes WHERE chore_id = ? ORDER BY created_at DESC, id DESC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var disputes []model.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}

func (s *DisputeStore) ListVotes(disputeID int64) ([]model.DisputeVote, error) {
	rows, err := s.db.Query(
		`SELECT id, dispute_id, user_id, vote, created_at, updated_at
		 FROM dispute_votes WHERE dispute_id = ? ORDER BY created_at ASC, id ASC`,
		disputeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list dispute votes: %w", err)
	}
	defer rows.Close()

	var votes []model.DisputeVote
	for rows.Next() {
		var v model.DisputeVote
		if err := rows.Scan(&v.ID, &v.DisputeID, &v.UserID, &v.Vote, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan dispute vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
