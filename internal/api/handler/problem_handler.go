package handler

import (
	"net/http"
	"strconv"

	"leetclash/internal/app/service"
	"leetclash/internal/common"
	"leetclash/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ProblemHandler struct {
	problemService *service.ProblemService
}

func NewProblemHandler(ps *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{problemService: ps}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listProblems) // GET /api/v1/problems?difficulty=Easy&limit=20
	r.Get("/presets", h.presets)
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	difficulty := model.ProblemDifficulty(r.URL.Query().Get("difficulty"))

	problems, err := h.problemService.ListRecent(r.Context(), limit, difficulty)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]any{"problems": problems})
}

// presets lists what the lobby may offer when starting a game.
func (h *ProblemHandler) presets(w http.ResponseWriter, r *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, map[string]any{
		"counts":       service.ProblemCountPresets,
		"difficulties": []model.ProblemDifficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard},
	})
}
