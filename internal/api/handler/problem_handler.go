package handler

import (
	"net/http"

	"sheet_judge/internal/api/middleware"
	"sheet_judge/internal/app/service"
	"sheet_judge/internal/common"
	"sheet_judge/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

const maxSheetBodyBytes = 32 << 20

type ProblemHandler struct {
	problemService *service.ProblemService
}

func NewProblemHandler(ps *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{problemService: ps}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(middleware.OptionalAuth)
		public.Get("/{sheetID}/problems", h.listProblems)           // GET /api/v1/sheets/dp-basics/problems
		public.Get("/{sheetID}/problems/{problemID}", h.getProblem) // GET /api/v1/sheets/dp-basics/problems/sum-of-two
	})

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Put("/", h.importSheet)                 // PUT /api/v1/sheets (TOML body)
		adminRouter.Get("/{sheetID}/export", h.exportSheet) // GET /api/v1/sheets/dp-basics/export
	})
}

func caller(r *http.Request) model.Principal {
	p, _ := middleware.GetPrincipal(r.Context())
	return p
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	sheet, problems, err := h.problemService.ListProblems(r.Context(), caller(r), chi.URLParam(r, "sheetID"))
	if err != nil {
		common.RespondWithServiceError(w, r, err, false)
		return
	}

	type SheetProblemsResponse struct {
		Sheet    *model.Sheet    `json:"sheet"`
		Problems []model.Problem `json:"problems"`
	}
	common.RespondWithJSON(w, http.StatusOK, SheetProblemsResponse{Sheet: sheet, Problems: problems})
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.problemService.GetProblem(r.Context(), caller(r),
		chi.URLParam(r, "sheetID"), chi.URLParam(r, "problemID"))
	if err != nil {
		common.RespondWithServiceError(w, r, err, false)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) importSheet(w http.ResponseWriter, r *http.Request) {
	sheet, problems, err := h.problemService.ImportSheet(r.Context(), http.MaxBytesReader(w, r.Body, maxSheetBodyBytes))
	if err != nil {
		common.RespondWithServiceError(w, r, err, false)
		return
	}

	type ImportSheetResponse struct {
		Sheet    *model.Sheet    `json:"sheet"`
		Problems []model.Problem `json:"problems"`
	}
	common.RespondWithJSON(w, http.StatusOK, ImportSheetResponse{Sheet: sheet, Problems: problems})
}

func (h *ProblemHandler) exportSheet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.problemService.ExportSheet(r.Context(), chi.URLParam(r, "sheetID"))
	if err != nil {
		common.RespondWithServiceError(w, r, err, false)
		return
	}
	w.Header().Set("Content-Type", "application/toml")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
