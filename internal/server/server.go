package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/colefenn/tally/internal/engine"
	"github.com/colefenn/tally/internal/handler"
	"github.com/colefenn/tally/internal/middleware"
	"github.com/colefenn/tally/internal/photo"
	"github.com/colefenn/tally/internal/store"
	ws "github.com/colefenn/tally/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	engine       *engine.Engine
	authH        *handler.AuthHandler
	homeH        *handler.HomeHandler
	choreH       *handler.ChoreHandler
	disputeH     *handler.DisputeHandler
	photoH       *handler.PhotoHandler
	sessionStore *store.SessionStore
	homeStore    *store.HomeStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, photos *photo.Store, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	homeStore := store.NewHomeStore(db)
	choreStore := store.NewChoreStore(db)
	disputeStore := store.NewDisputeStore(db)
	sessionStore := store.NewSessionStore(db)

	eng := engine.New(db, logger.With("component", "engine"))
	rateLimiter := middleware.NewRateLimiter()

	return &Server{
		db:           db,
		hub:          hub,
		engine:       eng,
		authH:        handler.NewAuthHandler(userStore, homeStore, sessionStore, rateLimiter, logger.With("component", "auth")),
		homeH:        handler.NewHomeHandler(homeStore, userStore, hub, logger.With("component", "home")),
		choreH:       handler.NewChoreHandler(choreStore, eng, hub, logger.With("component", "chore")),
		disputeH:     handler.NewDisputeHandler(disputeStore, choreStore, eng, hub, logger.With("component", "dispute")),
		photoH:       handler.NewPhotoHandler(photos, logger.With("component", "photo")),
		sessionStore: sessionStore,
		homeStore:    homeStore,
		rateLimiter:  rateLimiter,
		logger:       logger,
	}
}

// Engine returns the lifecycle engine, for wiring the dispute sweeper.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Hub returns the websocket hub, for broadcasting sweep resolutions.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /register", s.authH.Register)
	outerMux.HandleFunc("POST /login", s.authH.Login)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.homeStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Home API routes
	mux.HandleFunc("GET /api/home", s.homeH.Get)
	mux.HandleFunc("PUT /api/home", s.homeH.Update)
	mux.HandleFunc("GET /api/home/members", s.homeH.ListMembers)
	mux.HandleFunc("POST /api/home/members", s.homeH.AddMember)
	mux.HandleFunc("DELETE /api/home/members/{id}", s.homeH.RemoveMember)

	// Chore API routes
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/claim", s.choreH.Claim)
	mux.HandleFunc("POST /api/chores/{id}/complete", s.choreH.Complete)

	// Approval voting
	mux.HandleFunc("POST /api/chores/{id}/approvals", s.choreH.VoteApproval)
	mux.HandleFunc("DELETE /api/chores/{id}/approvals", s.choreH.UnvoteApproval)
	mux.HandleFunc("GET /api/chores/{id}/approvals", s.choreH.ApprovalStatus)

	// Disputes
	mux.HandleFunc("POST /api/chores/{id}/disputes", s.disputeH.Create)
	mux.HandleFunc("GET /api/chores/{id}/disputes", s.disputeH.ListByChore)
	mux.HandleFunc("GET /api/disputes/{id}", s.disputeH.Get)
	mux.HandleFunc("POST /api/disputes/{id}/votes", s.disputeH.Vote)
	mux.HandleFunc("DELETE /api/disputes/{id}/votes", s.disputeH.Unvote)

	// Photos
	mux.HandleFunc("POST /api/photos", s.photoH.Upload)
	mux.HandleFunc("GET /api/photos/{ref}", s.photoH.Serve)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
