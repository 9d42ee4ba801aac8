package model

import "time"

// Chore statuses. A chore moves unapproved → unclaimed → claimed → complete,
// with a dispute-driven back-edge complete → claimed. The assignee is set
// iff the chore is claimed or complete.
const (
	ChoreUnapproved = "unapproved"
	ChoreUnclaimed  = "unclaimed"
	ChoreClaimed    = "claimed"
	ChoreComplete   = "complete"
)

type Chore struct {
	ID          int64      `json:"id"`
	HomeID      int64      `json:"home_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	Status      string     `json:"status"`
	AssigneeID  *int64     `json:"assignee_id"`
	PhotoRef    *string    `json:"photo_ref"`
	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at"`
	CompletedAt *time.Time `json:"completed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Approval is a single member's approval vote on an unapproved chore.
// Rows persist after the chore transitions, keeping the historical tally.
type Approval struct {
	ID        int64     `json:"id"`
	ChoreID   int64     `json:"chore_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
