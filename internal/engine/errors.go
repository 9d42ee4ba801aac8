package engine

import "errors"

// Lifecycle errors. Every guard is checked inside the transaction that
// would perform the mutation, so a failed guard leaves no partial effect.
var (
	// ErrNotFound means the chore, dispute, or vote does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a state-machine guard rejected the transition:
	// claiming a chore that is not unclaimed, completing a chore that is
	// not claimed, or voting on a resolved dispute.
	ErrConflict = errors.New("conflict")

	// ErrForbidden means the actor lacks standing: not the assignee, not a
	// home member, or the accused voting on their own dispute.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyVoted means the user already holds an approval vote on the
	// chore. Kept distinct from ErrConflict so callers can render a
	// specific message.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrInvalidInput means a malformed identifier, decision, or reason.
	ErrInvalidInput = errors.New("invalid input")
)
