package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/colefenn/tally/internal/auth"
	"github.com/colefenn/tally/internal/engine"
	"github.com/colefenn/tally/internal/model"
	"github.com/colefenn/tally/internal/store"
	"github.com/colefenn/tally/internal/websocket"
)

type DisputeHandler struct {
	disputeStore *store.DisputeStore
	choreStore   *store.ChoreStore
	engine       *engine.Engine
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewDisputeHandler(ds *store.DisputeStore, cs *store.ChoreStore, eng *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *DisputeHandler {
	return &DisputeHandler{disputeStore: ds, choreStore: cs, engine: eng, hub: hub, logger: logger}
}

// homeDispute loads a dispute and verifies its chore belongs to the caller's
// home. Returns the dispute and the chore's home, or nil after writing an
// error response.
func (h *DisputeHandler) homeDispute(w http.ResponseWriter, r *http.Request) (*model.Dispute, int64) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, 0
	}
	dispute, err := h.disputeStore.GetByID(id)
	if err != nil {
		h.logger.Error("get dispute", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get dispute")
		return nil, 0
	}
	if dispute == nil {
		writeError(w, http.StatusNotFound, "dispute not found")
		return nil, 0
	}
	chore, err := h.choreStore.GetByID(dispute.ChoreID)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get dispute")
		return nil, 0
	}
	if chore == nil || chore.HomeID != auth.HomeID(r.Context()) {
		writeError(w, http.StatusNotFound, "dispute not found")
		return nil, 0
	}
	return dispute, chore.HomeID
}

type createDisputeRequest struct {
	Reason   string  `json:"reason"`
	ImageRef *string `json:"image_ref"`
}

// Create opens a dispute against a completed chore.
func (h *DisputeHandler) Create(w http.ResponseWriter, r *http.Request) {
	choreID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	chore, err := h.choreStore.GetByID(choreID)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if chore == nil || chore.HomeID != auth.HomeID(r.Context()) {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	var req createDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)

	dispute, err := h.engine.CreateDispute(choreID, auth.UserID(r.Context()), req.Reason, req.ImageRef)
	if err != nil {
		writeEngineError(w, err, h.logger)
		return
	}

	h.hub.Broadcast(chore.HomeID, websocket.NewMessage("dispute", "created", dispute.ID, map[string]any{
		"chore_id": choreID,
	}))
	writeJSON(w, http.StatusCreated, dispute)
}

// ListByChore returns every dispute ever opened against the chore, newest
// first.
func (h *DisputeHandler) ListByChore(w http.ResponseWriter, r *http.Request) {
	choreID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	chore, err := h.choreStore.GetByID(choreID)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if chore == nil || chore.HomeID != auth.HomeID(r.Context()) {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	disputes, err := h.disputeStore.ListByChore(choreID)
	if err != nil {
		h.logger.Error("list disputes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list disputes")
		return
	}
	if disputes == nil {
		disputes = []model.Dispute{}
	}
	writeJSON(w, http.StatusOK, disputes)
}

func (h *DisputeHandler) Get(w http.ResponseWriter, r *http.Request) {
	dispute, _ := h.homeDispute(w, r)
	if dispute == nil {
		return
	}

	votes, err := h.disputeStore.ListVotes(dispute.ID)
	if err != nil {
		h.logger.Error("list dispute votes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get dispute")
		return
	}
	if votes == nil {
		votes = []model.DisputeVote{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dispute": dispute,
		"votes":   votes,
	})
}

type disputeVoteRequest struct {
	Decision string `json:"decision"`
}

// Vote records or replaces the caller's vote. Reaching quorum resolves the
// dispute immediately; a sustained verdict reverses the completion.
func (h *DisputeHandler) Vote(w http.ResponseWriter, r *http.Request) {
	dispute, homeID := h.homeDispute(w, r)
	if dispute == nil {
		return
	}

	var req disputeVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	status, err := h.engine.VoteDispute(dispute.ID, auth.UserID(r.Context()), req.Decision)
	if err != nil {
		writeEngineError(w, err, h.logger)
		return
	}

	if status != "" {
		h.hub.Broadcast(homeID, websocket.NewMessage("dispute", "resolved", dispute.ID, map[string]any{
			"chore_id": dispute.ChoreID,
			"status":   status,
		}))
	} else {
		status = model.DisputePending
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// Unvote withdraws the caller's vote from a still-pending dispute.
func (h *DisputeHandler) Unvote(w http.ResponseWriter, r *http.Request) {
	dispute, _ := h.homeDispute(w, r)
	if dispute == nil {
		return
	}

	status, err := h.engine.UnvoteDispute(dispute.ID, auth.UserID(r.Context()))
	if err != nil {
		writeEngineError(w, err, h.logger)
		return
	}
	if status == "" {
		status = model.DisputePending
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
