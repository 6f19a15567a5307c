package handler

import (
	"net/http"
	"strconv"

	"leetclash/internal/app/service"
	"leetclash/internal/common"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	resultService *service.ResultService
}

func NewLeaderboardHandler(rs *service.ResultService) *LeaderboardHandler {
	return &LeaderboardHandler{resultService: rs}
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.leaderboard)
}

func (h *LeaderboardHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.resultService.Leaderboard(r.Context(), limit)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
