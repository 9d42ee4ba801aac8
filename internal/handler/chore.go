package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/colefenn/tally/internal/auth"
	"github.com/colefenn/tally/internal/engine"
	"github.com/colefenn/tally/internal/model"
	"github.com/colefenn/tally/internal/points"
	"github.com/colefenn/tally/internal/store"
	"github.com/colefenn/tally/internal/websocket"
)

type ChoreHandler struct {
	choreStore *store.ChoreStore
	engine     *engine.Engine
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{choreStore: cs, engine: eng, hub: hub, logger: logger}
}

// choreResponse decorates a chore with its dynamic value: base points plus
// the unclaimed-time bonus accrued so far, or the locked-in award once
// claimed.
type choreResponse struct {
	model.Chore
	CurrentValue int `json:"current_value"`
}

func toChoreResponse(c model.Chore, now time.Time) choreResponse {
	value := c.Points
	switch c.Status {
	case model.ChoreUnclaimed:
		value = points.Awarded(c.Points, c.CreatedAt, now)
	case model.ChoreClaimed, model.ChoreComplete:
		if c.ClaimedAt != nil {
			value = points.Awarded(c.Points, c.CreatedAt, *c.ClaimedAt)
		}
	}
	return choreResponse{Chore: c, CurrentValue: value}
}

// homeChore loads a chore and verifies it belongs to the caller's home.
// Chores in other homes are reported as not found, not forbidden.
func (h *ChoreHandler) homeChore(w http.ResponseWriter, r *http.Request) *model.Chore {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	chore, err := h.choreStore.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return nil
	}
	if chore == nil || chore.HomeID != auth.HomeID(r.Context()) {
		writeError(w, http.StatusNotFound, "chore not found")
		return nil
	}
	return chore
}

type choreRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Points < 0 {
		writeError(w, http.StatusBadRequest, "points cannot be negative")
		return
	}

	homeID := auth.HomeID(r.Context())
	chore, err := h.choreStore.Create(homeID, req.Name, req.Description, req.Points)
	if err != nil {
		h.logger.Error("create chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create chore")
		return
	}

	h.hub.Broadcast(homeID, websocket.NewMessage("chore", "created", chore.ID, nil))
	writeJSON(w, http.StatusCreated, toChoreResponse(*chore, time.Now().UTC()))
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	homeID := auth.HomeID(r.Context())

	var chores []model.Chore
	var err error
	if status := r.URL.Query().Get("status"); status != "" {
		chores, err = h.choreStore.ListByStatus(homeID, status)
	} else {
		chores, err = h.choreStore.ListByHome(homeID)
	}
	if err != nil {
		h.logger.Error("list chores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chores")
		return
	}

	now := time.Now().UTC()
	resp := make([]choreResponse, 0, len(chores))
	for _, c := range chores {
		resp = append(resp, toChoreResponse(c, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}
	writeJSON(w, http.StatusOK, toChoreResponse(*chore, time.Now().UTC()))
}

type choreUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Update changes a chore's name and description. Base points are immutable
// after creation so already-locked awards stay honest.
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}

	var req choreUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	updated, err := h.choreStore.UpdateDetails(chore.ID, req.Name, req.Description)
	if err != nil {
		h.logger.Error("update chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update chore")
		return
	}

	h.hub.Broadcast(chore.HomeID, websocket.NewMessage("chore", "updated", chore.ID, nil))
	writeJSON(w, http.StatusOK, toChoreResponse(*updated, time.Now().UTC()))
}

// Delete removes a chore that nobody has claimed yet. Claimed and completed
// chores stay on the books.
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}

	if chore.Status != model.ChoreUnapproved && chore.Status != model.ChoreUnclaimed {
		writeError(w, http.StatusConflict, "cannot delete a claimed or completed chore")
		return
	}

	if err := h.choreStore.Delete(chore.ID); err != nil {
		h.logger.Error("delete chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}

	h.hub.Broadcast(chore.HomeID, websocket.NewMessage("chore", "deleted", chore.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Claim assigns the chore to the caller. Exactly one of any concurrent
// claimants succeeds; the rest get a conflict.
func (h *ChoreHandler) Claim(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.engine.Claim(chore.ID, userID); err != nil {
		writeEngineError(w, err, h.logger)
		return
	}

	h.hub.Broadcast(chore.HomeID, websocket.NewMessage("chore", "claimed", chore.ID, map[string]any{
		"user_id": userID,
	}))
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	PhotoRef *string `json:"photo_ref"`
}

// Complete marks the chore done and credits the caller the award locked in
// at claim time.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}

	var req completeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	userID := auth.UserID(r.Context())
	awarded, err := h.engine.Complete(chore.ID, userID, req.PhotoRef)
	if err != nil {
		writeEngineError(w, err, h.logger)
		return
	}

	h.hub.Broadcast(chore.HomeID, websocket.NewMessage("chore", "completed", chore.ID, map[string]any{
		"user_id": userID,
		"awarded": awarded,
	}))
	writeJSON(w, http.StatusOK, map[string]int{"awarded": awarded})
}

// VoteApproval records the caller's approval vote and reports the tally.
func (h *ChoreHandler) VoteApproval(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}

	st, err := h.engine.VoteApproval(chore.ID, auth.UserID(r.Context()))
	if err != nil {
		writeEngineError(w, err, h.logger)
		return
	}

	if st.Approved && chore.Status == model.ChoreUnapproved {
		h.hub.Broadcast(chore.HomeID, websocket.NewMessage("chore", "approved", chore.ID, nil))
	}
	writeJSON(w, http.StatusOK, st)
}

// UnvoteApproval withdraws the caller's approval vote.
func (h *ChoreHandler) UnvoteApproval(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}

	st, err := h.engine.UnvoteApproval(chore.ID, auth.UserID(r.Context()))
	if err != nil {
		writeEngineError(w, err, h.logger)
		return
	}

	if !st.Approved && chore.Status == model.ChoreUnclaimed {
		h.hub.Broadcast(chore.HomeID, websocket.NewMessage("chore", "unapproved", chore.ID, nil))
	}
	writeJSON(w, http.StatusOK, st)
}

// ApprovalStatus reports the current tally without voting.
func (h *ChoreHandler) ApprovalStatus(w http.ResponseWriter, r *http.Request) {
	chore := h.homeChore(w, r)
	if chore == nil {
		return
	}

	st, err := h.engine.ApprovalTally(chore.ID)
	if err != nil {
		writeEngineError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
