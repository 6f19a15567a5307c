package handler

import (
	"encoding/json"
	"net/http"

	"leetclash/internal/api/middleware"
	"leetclash/internal/app/service"
	"leetclash/internal/common"

	"github.com/go-chi/chi/v5"
)

type SoloHandler struct {
	soloService *service.SoloService
}

func NewSoloHandler(ss *service.SoloService) *SoloHandler {
	return &SoloHandler{soloService: ss}
}

type CodeRequest struct {
	Code string `json:"code"`
}

func (h *SoloHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.start)
	r.Get("/{gameID}", h.get)
	r.Put("/{gameID}/code", h.updateCode)
	r.Post("/{gameID}/submit", h.submit)
	r.Delete("/{gameID}", h.dispose)
}

func (h *SoloHandler) start(w http.ResponseWriter, r *http.Request) {
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

	m, err := h.soloService.Start(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, m)
}

func (h *SoloHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	m, err := h.soloService.Get(r.Context(), chi.URLParam(r, "gameID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, m)
}

func (h *SoloHandler) updateCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	m, err := h.soloService.UpdateCode(r.Context(), chi.URLParam(r, "gameID"), userID, req.Code)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, m)
}

// submit waits for the judge, so the response carries the verdict.
func (h *SoloHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	res, err := h.soloService.Submit(r.Context(), chi.URLParam(r, "gameID"), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *SoloHandler) dispose(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.soloService.Dispose(r.Context(), chi.URLParam(r, "gameID"), userID); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
