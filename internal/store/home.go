package store

import (
	"database/sql"
	"fmt"

	"github.com/colefenn/tally/internal/model"
)

type HomeStore struct {
	db *sql.DB
}

func NewHomeStore(db *sql.DB) *HomeStore {
	return &HomeStore{db: db}
}

func scanHome(scanner interface{ Scan(...any) error }) (*model.Home, error) {
	var h model.Home
	err := scanner.Scan(&h.ID, &h.Name, &h.WeeklyQuota, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	err := scanner.Scan(&m.ID, &m.HomeID, &m.UserID, &m.Points, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const homeCols = `id, name, weekly_quota, created_at, updated_at`
const membershipCols = `id, home_id, user_id, points, created_at, updated_at`

func (s *HomeStore) Create(name string, weeklyQuota int) (*model.Home, error) {
	result, err := s.db.Exec(
		`INSERT INTO homes (name, weekly_quota) VALUES (?, ?)`,
		name, weeklyQuota,
	)
	if err != nil {
		return nil, fmt.Errorf("insert home: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HomeStore) GetByID(id int64) (*model.Home, error) {
	row := s.db.QueryRow(`SELECT `+homeCols+` FROM homes WHERE id = ?`, id)
	h, err := scanHome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get home: %w", err)
	}
	return h, nil
}

func (s *HomeStore) Update(id int64, name string, weeklyQuota int) (*model.Home, error) {
	_, err := s.db.Exec(
		`UPDATE homes SET name = ?, weekly_quota = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, weeklyQuota, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update home: %w", err)
	}
	return s.GetByID(id)
}

// AddMember joins a user to a home. The membership's point balance starts
// at zero.
func (s *HomeStore) AddMember(homeID, userID int64) (*model.Membership, error) {
	result, err := s.db.Exec(
		`INSERT INTO memberships (home_id, user_id) VALUES (?, ?)`,
		homeID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+membershipCols+` FROM memberships WHERE id = ?`, id)
	return scanMembership(row)
}

func (s *HomeStore) RemoveMember(homeID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM memberships WHERE home_id = ? AND user_id = ?`,
		homeID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *HomeStore) GetMembership(homeID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM memberships WHERE home_id = ? AND user_id = ?`,
		homeID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// ListMembers returns the home's members with identity and point balance,
// highest balance first.
func (s *HomeStore) ListMembers(homeID int64) ([]model.Member, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.email, u.name, m.points, m.created_at
		 FROM memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.home_id = ?
		 ORDER BY m.points DESC, u.name ASC`,
		homeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &m.Points, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *HomeStore) CountMembers(homeID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memberships WHERE home_id = ?`, homeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func (s *HomeStore) ListHomesForUser(userID int64) ([]model.Home, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.name, h.weekly_quota, h.created_at, h.updated_at
		 FROM homes h
		 JOIN memberships m ON h.id = m.home_id
		 WHERE m.user_id = ?
		 ORDER BY h.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list homes for user: %w", err)
	}
	defer rows.Close()

	var homes []model.Home
	for rows.Next() {
		h, err := scanHome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan home: %w", err)
		}
		homes = append(homes, *h)
	}
	return homes, rows.Err()
}
