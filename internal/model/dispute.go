package model

import "time"

// Dispute statuses. Pending disputes resolve to sustained or overruled and
// never change afterward.
const (
	DisputePending   = "pending"
	DisputeSustained = "sustained"
	DisputeOverruled = "overruled"
)

// Dispute vote decisions. Sustain favors the disputer (the completion is
// reversed); overrule favors the chore-doer (the completion stands).
const (
	VoteSustain  = "sustain"
	VoteOverrule = "overrule"
)

type Dispute struct {
	ID         int64      `json:"id"`
	ChoreID    int64      `json:"chore_id"`
	DisputerID int64      `json:"disputer_id"`
	Reason     string     `json:"reason"`
	ImageRef   *string    `json:"image_ref"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

type DisputeVote struct {
	ID        int64     `json:"id"`
	DisputeID int64     `json:"dispute_id"`
	UserID    int64     `json:"user_id"`
	Vote      string    `json:"vote"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
