package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/colefenn/tally/internal/auth"
	"github.com/colefenn/tally/internal/model"
	"github.com/colefenn/tally/internal/store"
	"github.com/colefenn/tally/internal/websocket"
)

type HomeHandler struct {
	homeStore *store.HomeStore
	userStore *store.UserStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewHomeHandler(hs *store.HomeStore, us *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{homeStore: hs, userStore: us, hub: hub, logger: logger}
}

func (h *HomeHandler) Get(w http.ResponseWriter, r *http.Request) {
	home, err := h.homeStore.GetByID(auth.HomeID(r.Context()))
	if err != nil || home == nil {
		writeError(w, http.StatusInternalServerError, "failed to load home")
		return
	}
	writeJSON(w, http.StatusOK, home)
}

type homeRequest struct {
	Name        string `json:"name"`
	WeeklyQuota int    `json:"weekly_quota"`
}

func (h *HomeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req homeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.WeeklyQuota < 0 {
		writeError(w, http.StatusBadRequest, "weekly_quota cannot be negative")
		return
	}

	home, err := h.homeStore.Update(auth.HomeID(r.Context()), req.Name, req.WeeklyQuota)
	if err != nil {
		h.logger.Error("update home", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update home")
		return
	}
	writeJSON(w, http.StatusOK, home)
}

// ListMembers returns the home's members with point balances, highest
// first — the leaderboard view of the ledger.
func (h *HomeHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.homeStore.ListMembers(auth.HomeID(r.Context()))
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type addMemberRequest struct {
	Email string `json:"email"`
}

// AddMember joins an existing user to the caller's home by email.
func (h *HomeHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "no user with that email")
		return
	}

	homeID := auth.HomeID(r.Context())
	existing, err := h.homeStore.GetMembership(homeID, user.ID)
	if err != nil {
		h.logger.Error("get membership", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "already a member")
		return
	}

	membership, err := h.homeStore.AddMember(homeID, user.ID)
	if err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	h.hub.Broadcast(homeID, websocket.NewMessage("member", "added", user.ID, nil))
	writeJSON(w, http.StatusCreated, membership)
}

// RemoveMember drops a user from the home. Their point balance goes with the
// membership; quorums shrink accordingly.
func (h *HomeHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	homeID := auth.HomeID(r.Context())
	membership, err := h.homeStore.GetMembership(homeID, userID)
	if err != nil {
		h.logger.Error("get membership", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	if membership == nil {
		writeError(w, http.StatusNotFound, "not a member")
		return
	}

	if err := h.homeStore.RemoveMember(homeID, userID); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	h.hub.Broadcast(homeID, websocket.NewMessage("member", "removed", userID, nil))
	w.WriteHeader(http.StatusNoContent)
}
