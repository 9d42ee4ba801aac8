package engine

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/colefenn/tally/internal/database"
	"github.com/colefenn/tally/internal/model"
	"github.com/colefenn/tally/internal/store"
)

// fixture wires an Engine against a throwaway database with the stores
// needed to arrange homes, members, and chores.
type fixture struct {
	db     *sql.DB
	engine *Engine
	users  *store.UserStore
	homes  *store.HomeStore
	chores *store.ChoreStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "engine_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &fixture{
		db:     db,
		engine: New(db, slog.Default()),
		users:  store.NewUserStore(db),
		homes:  store.NewHomeStore(db),
		chores: store.NewChoreStore(db),
	}
}

func (f *fixture) addUser(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.users.Create(email, email, "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// addHome creates a home and joins the given users to it.
func (f *fixture) addHome(t *testing.T, name string, userIDs ...int64) *model.Home {
	t.Helper()
	h, err := f.homes.Create(name, 100)
	if err != nil {
		t.Fatalf("create home: %v", err)
	}
	for _, id := range userIDs {
		if _, err := f.homes.AddMember(h.ID, id); err != nil {
			t.Fatalf("add member %d: %v", id, err)
		}
	}
	return h
}

func (f *fixture) addChore(t *testing.T, homeID int64, name string, basePoints int) *model.Chore {
	t.Helper()
	c, err := f.chores.Create(homeID, name, "", basePoints)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return c
}

// approveAndClaim walks a chore to claimed for a 1-2 member home.
func (f *fixture) approveAndClaim(t *testing.T, choreID int64, voterIDs []int64, claimerID int64) {
	t.Helper()
	for _, id := range voterIDs {
		if _, err := f.engine.VoteApproval(choreID, id); err != nil {
			t.Fatalf("approval vote by %d: %v", id, err)
		}
	}
	if err := f.engine.Claim(choreID, claimerID); err != nil {
		t.Fatalf("claim: %v", err)
	}
}

func (f *fixture) backdateChore(t *testing.T, choreID int64, createdAt time.Time) {
	t.Helper()
	if _, err := f.db.Exec(`UPDATE chores SET created_at = ? WHERE id = ?`, createdAt, choreID); err != nil {
		t.Fatalf("backdate chore: %v", err)
	}
}

func (f *fixture) backdateDispute(t *testing.T, disputeID int64, createdAt time.Time) {
	t.Helper()
	if _, err := f.db.Exec(`UPDATE disputes SET created_at = ? WHERE id = ?`, createdAt, disputeID); err != nil {
		t.Fatalf("backdate dispute: %v", err)
	}
}

func (f *fixture) choreState(t *testing.T, choreID int64) *model.Chore {
	t.Helper()
	c, err := f.chores.GetByID(choreID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if c == nil {
		t.Fatalf("chore %d missing", choreID)
	}
	return c
}

func (f *fixture) balance(t *testing.T, homeID, userID int64) int {
	t.Helper()
	m, err := f.homes.GetMembership(homeID, userID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m == nil {
		t.Fatalf("membership (%d,%d) missing", homeID, userID)
	}
	return m.Points
}
