package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"leetclash/internal/api/middleware"
	"leetclash/internal/app/service"
	"leetclash/internal/common"
	"leetclash/internal/domain/model"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// SessionHost starts hosting a duel on this node.
type SessionHost interface {
	Ensure(ctx context.Context, id string) error
}

type MatchHandler struct {
	matchService *service.MatchService
	host         SessionHost
}

func NewMatchHandler(ms *service.MatchService, host SessionHost) *MatchHandler {
	return &MatchHandler{matchService: ms, host: host}
}

type SubmitResponse struct {
	TicketID     string         `json:"ticket_id"`
	PlayerID     model.PlayerID `json:"player_id"`
	ProblemIndex int            `json:"problem_index"`
}

func (h *MatchHandler) RegisterRoutes(r chi.Router) {
	// The stream authenticates from the query string and outlives the
	// request timeout.
	r.Get("/{matchID}/ws", h.stream)

	r.Group(func(api chi.Router) {
		api.Use(chiMiddleware.Timeout(middleware.RequestTimeout))
		api.Use(middleware.Authenticator)
		api.Post("/", h.create)
		api.Get("/{matchID}", h.get)
		api.Post("/{matchID}/join", h.join)
		api.Put("/{matchID}/code", h.updateCode)
		api.Post("/{matchID}/submit", h.submit)
	})
}

func (h *MatchHandler) ensureHosted(ctx context.Context, id string) {
	if err := h.host.Ensure(context.WithoutCancel(ctx), id); err != nil {
		log.Printf("WARN: Could not host match %s: %v", id, err)
	}
}

func (h *MatchHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	var req service.ProblemSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	m, err := h.matchService.Create(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	h.ensureHosted(r.Context(), m.ID)
	common.RespondWithJSON(w, http.StatusCreated, m)
}

func (h *MatchHandler) join(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	m, err := h.matchService.Join(r.Context(), chi.URLParam(r, "matchID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	h.ensureHosted(r.Context(), m.ID)
	common.RespondWithJSON(w, http.StatusOK, m)
}

func (h *MatchHandler) get(w http.ResponseWriter, r *http.Request) {
	m, err := h.matchService.Get(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, m)
}

func (h *MatchHandler) updateCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.matchService.UpdateCode(r.Context(), chi.URLParam(r, "matchID"), userID, req.Code); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submit only queues the attempt; the verdict arrives on the stream.
func (h *MatchHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	ticket, err := h.matchService.Submit(r.Context(), chi.URLParam(r, "matchID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, SubmitResponse{
		TicketID:     ticket.ID,
		PlayerID:     ticket.PlayerID,
		ProblemIndex: ticket.ProblemIndex,
	})
}
