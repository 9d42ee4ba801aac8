package store

import (
	"database/sql"
	"fmt"

	"github.com/colefenn/tally/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var assignee sql.NullInt64
	var photoRef sql.NullString
	var claimedAt, completedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.HomeID, &c.Name, &c.Description, &c.Points, &c.Status,
		&assignee, &photoRef, &c.CreatedAt, &claimedAt, &completedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignee.Valid {
		c.AssigneeID = &assignee.Int64
	}
	if photoRef.Valid {
		c.PhotoRef = &photoRef.String
	}
	if claimedAt.Valid {
		c.ClaimedAt = &claimedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}

const choreCols = `id, home_id, name, description, points, status, assignee_id, photo_ref, created_at, claimed_at, completed_at, updated_at`

// Create inserts a chore in the unapproved state. Base points are immutable
// after creation.
func (s *ChoreStore) Create(homeID int64, name, description string, points int) (*model.Chore, error) {
	result, err := s.db.Exec(
		`INSERT INTO chores (home_id, name, description, points) VALUES (?, ?, ?, ?)`,
		homeID, name, description, points,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) ListByHome(homeID int64) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores WHERE home_id = ? ORDER BY created_at DESC, id DESC`,
		homeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) ListByStatus(homeID int64, status string) ([]model.Chore, error) {
	rows, err := s.db.Query(
		`SELECT `+choreCols+` FROM chores WHERE home_id = ? AND status = ? ORDER BY created_at DESC, id DESC`,
		homeID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores by status: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// UpdateDetails changes the chore's name and description. Points and status
// are deliberately excluded: base points are immutable and status belongs to
// the lifecycle engine.
func (s *ChoreStore) UpdateDetails(id int64, name, description string) (*model.Chore, error) {
	_, err := s.db.Exec(
		`UPDATE chores SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// ListApprovalVoters returns the user IDs that have voted to approve the
// chore, oldest vote first.
func (s *ChoreStore) ListApprovalVoters(choreID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM approvals WHERE chore_id = ? ORDER BY created_at ASC, id ASC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list approval voters: %w", err)
	}
	defer rows.Close()

	var voters []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan approval voter: %w", err)
		}
		voters = append(voters, id)
	}
	return voters, rows.Err()
}
