package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/colefenn/tally/internal/model"
	"github.com/colefenn/tally/internal/store"
)

// completedChore arranges a two-member home where the chore sat unclaimed
// for 48 hours, was claimed and completed by the first user, crediting 24
// points for a base of 20.
func completedChore(t *testing.T, f *fixture) (home int64, doer, other int64, choreID int64) {
	t.Helper()
	a := f.addUser(t, "doer@example.com")
	b := f.addUser(t, "other@example.com")
	h := f.addHome(t, "Disputed", a.ID, b.ID)
	c := f.addChore(t, h.ID, "Gutters", 20)

	f.backdateChore(t, c.ID, time.Now().UTC().Add(-48*time.Hour))
	f.approveAndClaim(t, c.ID, []int64{a.ID, b.ID}, a.ID)
	if _, err := f.engine.Complete(c.ID, a.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return h.ID, a.ID, b.ID, c.ID
}

func TestCreateDispute(t *testing.T) {
	f := setup(t)
	_, _, other, choreID := completedChore(t, f)

	d, err := f.engine.CreateDispute(choreID, other, "not actually done", nil)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}
	if d.Status != model.DisputePending {
		t.Errorf("status = %q, want %q", d.Status, model.DisputePending)
	}
	if d.Reason != "not actually done" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestCreateDisputeGuards(t *testing.T) {
	f := setup(t)
	_, _, other, choreID := completedChore(t, f)
	stranger := f.addUser(t, "stranger@example.com")

	if _, err := f.engine.CreateDispute(999, other, "?", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chore err = %v, want ErrNotFound", err)
	}
	if _, err := f.engine.CreateDispute(choreID, stranger.ID, "?", nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-member err = %v, want ErrForbidden", err)
	}
	if _, err := f.engine.CreateDispute(choreID, other, "   ", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty reason err = %v, want ErrInvalidInput", err)
	}
}

func TestSustainedDisputeReversesCompletion(t *testing.T) {
	f := setup(t)
	homeID, doer, other, choreID := completedChore(t, f)

	if got := f.balance(t, homeID, doer); got != 24 {
		t.Fatalf("balance before dispute = %d, want 24", got)
	}

	d, err := f.engine.CreateDispute(choreID, other, "photo shows dirty gutters", nil)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}

	// One eligible voter (the assignee is excluded), so required = 1.
	resolved, err := f.engine.VoteDispute(d.ID, other, model.VoteSustain)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if resolved != model.DisputeSustained {
		t.Fatalf("resolved = %q, want %q", resolved, model.DisputeSustained)
	}

	c := f.choreState(t, choreID)
	if c.Status != model.ChoreClaimed {
		t.Errorf("chore status = %q, want %q", c.Status, model.ChoreClaimed)
	}
	if c.CompletedAt != nil {
		t.Error("completed_at should be cleared")
	}
	if got := f.balance(t, homeID, doer); got != 0 {
		t.Errorf("balance after clawback = %d, want 0", got)
	}
}

func TestClawbackFloorsAtZero(t *testing.T) {
	f := setup(t)
	homeID, doer, other, choreID := completedChore(t, f)

	// Drain part of the balance so the clawback would overdraw it.
	if _, err := f.db.Exec(
		`UPDATE memberships SET points = 10 WHERE home_id = ? AND user_id = ?`,
		homeID, doer,
	); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	d, _ := f.engine.CreateDispute(choreID, other, "redo it", nil)
	if _, err := f.engine.VoteDispute(d.ID, other, model.VoteSustain); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if got := f.balance(t, homeID, doer); got != 0 {
		t.Errorf("balance = %d, want 0 (clawback never goes negative)", got)
	}
}

func TestAssigneeCannotVote(t *testing.T) {
	f := setup(t)
	_, doer, other, choreID := completedChore(t, f)

	d, _ := f.engine.CreateDispute(choreID, other, "incomplete", nil)
	if _, err := f.engine.VoteDispute(d.ID, doer, model.VoteOverrule); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assignee vote err = %v, want ErrForbidden", err)
	}
}

func TestVoteValidation(t *testing.T) {
	f := setup(t)
	_, _, other, choreID := completedChore(t, f)
	d, _ := f.engine.CreateDispute(choreID, other, "incomplete", nil)

	if _, err := f.engine.VoteDispute(d.ID, other, "abstain"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad decision err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.engine.VoteDispute(404, other, model.VoteSustain); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing dispute err = %v, want ErrNotFound", err)
	}
}

func TestOverruleLeavesChoreAlone(t *testing.T) {
	f := setup(t)
	homeID, doer, other, choreID := completedChore(t, f)

	d, _ := f.engine.CreateDispute(choreID, other, "looks fine to me", nil)
	resolved, err := f.engine.VoteDispute(d.ID, other, model.VoteOverrule)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if resolved != model.DisputeOverruled {
		t.Fatalf("resolved = %q, want %q", resolved, model.DisputeOverruled)
	}

	c := f.choreState(t, choreID)
	if c.Status != model.ChoreComplete {
		t.Errorf("chore status = %q, want %q", c.Status, model.ChoreComplete)
	}
	if got := f.balance(t, homeID, doer); got != 24 {
		t.Errorf("balance = %d, want 24 (overrule has no ledger effect)", got)
	}
}

func TestVoteOnResolvedDispute(t *testing.T) {
	f := setup(t)
	_, _, other, choreID := completedChore(t, f)

	d, _ := f.engine.CreateDispute(choreID, other, "incomplete", nil)
	if _, err := f.engine.VoteDispute(d.ID, other, model.VoteOverrule); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if _, err := f.engine.VoteDispute(d.ID, other, model.VoteSustain); !errors.Is(err, ErrConflict) {
		t.Fatalf("vote after resolution err = %v, want ErrConflict", err)
	}
}

func TestVoteOverwriteAllowed(t *testing.T) {
	f := setup(t)
	a := f.addUser(t, "a@example.com")
	b := f.addUser(t, "b@example.com")
	c2 := f.addUser(t, "c@example.com")
	d2 := f.addUser(t, "d@example.com")
	h := f.addHome(t, "Big", a.ID, b.ID, c2.ID, d2.ID)
	ch := f.addChore(t, h.ID, "Attic", 10)

	// Approve (required = 2 of 4), claim by a.
	f.approveAndClaim(t, ch.ID, []int64{b.ID, c2.ID}, a.ID)
	if _, err := f.engine.Complete(ch.ID, a.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	d, err := f.engine.CreateDispute(ch.ID, b.ID, "half done", nil)
	if err != nil {
		t.Fatalf("create dispute: %v", err)
	}

	// 3 eligible voters (b, c, d), required = 2. One sustain vote stays
	// pending; changing it to overrule is an overwrite, not a new row.
	if resolved, err := f.engine.VoteDispute(d.ID, b.ID, model.VoteSustain); err != nil || resolved != "" {
		t.Fatalf("first vote: resolved=%q err=%v", resolved, err)
	}
	if resolved, err := f.engine.VoteDispute(d.ID, b.ID, model.VoteOverrule); err != nil || resolved != "" {
		t.Fatalf("overwrite vote: resolved=%q err=%v", resolved, err)
	}

	votes, err := store.NewDisputeStore(f.db).ListVotes(d.ID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("votes = %d, want 1 (overwrite, not duplicate)", len(votes))
	}
	if votes[0].Vote != model.VoteOverrule {
		t.Errorf("vote = %q, want %q", votes[0].Vote, model.VoteOverrule)
	}

	// Second overrule vote reaches quorum.
	if resolved, err := f.engine.VoteDispute(d.ID, c2.ID, model.VoteOverrule); err != nil || resolved != model.DisputeOverruled {
		t.Fatalf("quorum vote: resolved=%q err=%v", resolved, err)
	}
}

func TestUnvoteDispute(t *testing.T) {
	f := setup(t)
	a := f.addUser(t, "a@example.com")
	b := f.addUser(t, "b@example.com")
	c2 := f.addUser(t, "c@example.com")
	d2 := f.addUser(t, "d@example.com")
	h := f.addHome(t, "Big", a.ID, b.ID, c2.ID, d2.ID)
	ch := f.addChore(t, h.ID, "Basement", 10)
	f.approveAndClaim(t, ch.ID, []int64{b.ID, c2.ID}, a.ID)
	f.engine.Complete(ch.ID, a.ID, nil)

	d, _ := f.engine.CreateDispute(ch.ID, b.ID, "mess remains", nil)

	if _, err := f.engine.UnvoteDispute(d.ID, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unvote without vote err = %v, want ErrNotFound", err)
	}

	f.engine.VoteDispute(d.ID, b.ID, model.VoteSustain)
	if _, err := f.engine.UnvoteDispute(d.ID, b.ID); err != nil {
		t.Fatalf("unvote: %v", err)
	}

	votes, _ := store.NewDisputeStore(f.db).ListVotes(d.ID)
	if len(votes) != 0 {
		t.Errorf("votes = %d, want 0", len(votes))
	}
}

func TestTimeoutOverrulesStaleDispute(t *testing.T) {
	f := setup(t)
	_, _, other, choreID := completedChore(t, f)

	d, _ := f.engine.CreateDispute(choreID, other, "never finished", nil)
	f.backdateDispute(t, d.ID, time.Now().UTC().Add(-25*time.Hour))

	resolutions, err := f.engine.SweepDisputes(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(resolutions) != 1 {
		t.Fatalf("resolutions = %d, want 1", len(resolutions))
	}
	if resolutions[0].Status != model.DisputeOverruled {
		t.Errorf("status = %q, want %q (timeout favors the chore-doer)", resolutions[0].Status, model.DisputeOverruled)
	}

	// The chore and ledger are untouched.
	if got := f.choreState(t, choreID).Status; got != model.ChoreComplete {
		t.Errorf("chore status = %q, want %q", got, model.ChoreComplete)
	}
}

func TestSustainQuorumBeatsTimeout(t *testing.T) {
	f := setup(t)
	a := f.addUser(t, "a@example.com")
	b := f.addUser(t, "b@example.com")
	c2 := f.addUser(t, "c@example.com")
	d2 := f.addUser(t, "d@example.com")
	h := f.addHome(t, "Shrinking", a.ID, b.ID, c2.ID, d2.ID)
	ch := f.addChore(t, h.ID, "Roof", 20)
	f.approveAndClaim(t, ch.ID, []int64{b.ID, c2.ID}, a.ID)
	f.engine.Complete(ch.ID, a.ID, nil)

	d, _ := f.engine.CreateDispute(ch.ID, b.ID, "tiles missing", nil)

	// 3 eligible, required 2: one sustain vote leaves it pending.
	if resolved, _ := f.engine.VoteDispute(d.ID, b.ID, model.VoteSustain); resolved != "" {
		t.Fatalf("premature resolution %q", resolved)
	}

	// A member leaves, shrinking the quorum to 1, and the window lapses.
	// Sustain already meets the new threshold, so it wins over the timeout.
	if err := f.homes.RemoveMember(h.ID, d2.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	f.backdateDispute(t, d.ID, time.Now().UTC().Add(-25*time.Hour))

	resolutions, err := f.engine.SweepDisputes(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(resolutions) != 1 || resolutions[0].Status != model.DisputeSustained {
		t.Fatalf("resolutions = %+v, want one sustained", resolutions)
	}
	if got := f.choreState(t, ch.ID).Status; got != model.ChoreClaimed {
		t.Errorf("chore status = %q, want %q", got, model.ChoreClaimed)
	}
}

func TestSecondSustainedDisputeIsNoOp(t *testing.T) {
	f := setup(t)
	homeID, doer, other, choreID := completedChore(t, f)

	d1, _ := f.engine.CreateDispute(choreID, other, "first complaint", nil)
	d2, _ := f.engine.CreateDispute(choreID, other, "second complaint", nil)

	if _, err := f.engine.VoteDispute(d1.ID, other, model.VoteSustain); err != nil {
		t.Fatalf("vote d1: %v", err)
	}
	if got := f.balance(t, homeID, doer); got != 0 {
		t.Fatalf("balance = %d, want 0 after first reversal", got)
	}

	// Credit the doer some unrelated points, then sustain the second
	// dispute. The chore is no longer complete, so nothing moves.
	if _, err := f.db.Exec(
		`UPDATE memberships SET points = 50 WHERE home_id = ? AND user_id = ?`,
		homeID, doer,
	); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	if _, err := f.engine.VoteDispute(d2.ID, other, model.VoteSustain); err != nil {
		t.Fatalf("vote d2: %v", err)
	}
	if got := f.balance(t, homeID, doer); got != 50 {
		t.Errorf("balance = %d, want 50 (second reversal must not double-claw)", got)
	}
	if got := f.choreState(t, choreID).Status; got != model.ChoreClaimed {
		t.Errorf("chore status = %q, want %q", got, model.ChoreClaimed)
	}
}

func TestSweepSkipsResolvedDisputes(t *testing.T) {
	f := setup(t)
	_, _, other, choreID := completedChore(t, f)

	d, _ := f.engine.CreateDispute(choreID, other, "incomplete", nil)
	if _, err := f.engine.VoteDispute(d.ID, other, model.VoteOverrule); err != nil {
		t.Fatalf("vote: %v", err)
	}

	resolutions, err := f.engine.SweepDisputes(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(resolutions) != 0 {
		t.Errorf("resolutions = %d, want 0 (terminal disputes are never re-resolved)", len(resolutions))
	}
}
