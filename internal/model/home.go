package model

import "time"

type Home struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	WeeklyQuota int       `json:"weekly_quota"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership is a user's participation record in a home. The points column
// is the ledger row for that (home, user) pair.
type Membership struct {
	ID        int64     `json:"id"`
	HomeID    int64     `json:"home_id"`
	UserID    int64     `json:"user_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a membership joined with the user's identity, as rendered in
// member listings and leaderboards.
type Member struct {
	UserID   int64     `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Points   int       `json:"points"`
	JoinedAt time.Time `json:"joined_at"`
}
