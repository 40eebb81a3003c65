package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"

	"sheet_judge/internal/api/middleware"
	"sheet_judge/internal/app/service"
	"sheet_judge/internal/common"
	"sheet_judge/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

const (
	maxSubmissionBodyBytes = 256 << 10
	notSavedWarning        = "Submission not saved to history"
)

var errMissingPrincipal = common.NewError(common.ErrUnauthorized, "Missing user context")

type SubmissionHandler struct {
	submissionService *service.SubmissionService
	exposeDebug       bool
}

// NewSubmissionHandler builds the handler; exposeDebug adds collaborator errors to 503 bodies.
func NewSubmissionHandler(ss *service.SubmissionService, exposeDebug bool) *SubmissionHandler {
	return &SubmissionHandler{submissionService: ss, exposeDebug: exposeDebug}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All submission routes require auth
	r.Post("/", h.createSubmission)
	r.Get("/", h.listSubmissions)
	r.Get("/{submissionID}", h.getSubmission)
}

type createSubmissionRequest struct {
	SheetID     string `json:"sheetId"`
	ProblemID   string `json:"problemId"`
	SourceCode  string `json:"sourceCode"`
	TabSwitches *int   `json:"tabSwitches,omitempty"`
	PasteEvents *int   `json:"pasteEvents,omitempty"`
	TimeToSolve *int   `json:"timeToSolve,omitempty"`
}

type testResultResponse struct {
	TestCase          int           `json:"testCase"`
	Verdict           model.Verdict `json:"verdict"`
	Passed            bool          `json:"passed"`
	Time              string        `json:"time"`
	Memory            string        `json:"memory"`
	CompileError      string        `json:"compileError,omitempty"`
	RuntimeError      string        `json:"runtimeError,omitempty"`
	StatusDescription string        `json:"statusDescription,omitempty"`
}

type problemRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type createSubmissionResponse struct {
	Success       bool                 `json:"success"`
	SubmissionID  string               `json:"submissionId,omitempty"`
	Verdict       model.Verdict        `json:"verdict"`
	Passed        bool                 `json:"passed"`
	TestsPassed   int                  `json:"testsPassed"`
	TotalTests    int                  `json:"totalTests"`
	Time          string               `json:"time"`
	Memory        string               `json:"memory"`
	AttemptNumber int                  `json:"attemptNumber"`
	Results       []testResultResponse `json:"results"`
	Problem       problemRef           `json:"problem"`
	Warning       string               `json:"warning,omitempty"`
}

func (h *SubmissionHandler) createSubmission(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		common.RespondWithServiceError(w, r, errMissingPrincipal, false)
		return
	}

	req, err := decodeSubmission(w, r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.submissionService.JudgeSubmission(r.Context(), service.JudgeRequest{
		UserID:      caller.UserID,
		IPAddress:   clientIP(r),
		SheetID:     req.SheetID,
		ProblemID:   req.ProblemID,
		SourceCode:  req.SourceCode,
		TabSwitches: intOrZero(req.TabSwitches),
		PasteEvents: intOrZero(req.PasteEvents),
		TimeToSolve: req.TimeToSolve,
	})
	if err != nil {
		common.RespondWithServiceError(w, r, err, h.exposeDebug)
		return
	}

	resp := createSubmissionResponse{
		Success:       true,
		SubmissionID:  result.SubmissionID,
		Verdict:       result.Verdict,
		Passed:        result.Verdict.Passed(),
		TestsPassed:   result.TestsPassed,
		TotalTests:    result.TotalTests,
		Time:          fmt.Sprintf("%dms", result.TimeMs),
		Memory:        fmt.Sprintf("%dKB", result.MemoryKb),
		AttemptNumber: result.AttemptNumber,
		Results:       make([]testResultResponse, 0, len(result.Results)),
		Problem:       problemRef{ID: result.Problem.ID, Title: result.Problem.Title},
	}
	if !result.Saved {
		resp.Warning = notSavedWarning
	}
	for _, tr := range result.Results {
		resp.Results = append(resp.Results, testResultResponse{
			TestCase:          tr.TestCase,
			Verdict:           tr.Verdict,
			Passed:            tr.Passed,
			Time:              fmt.Sprintf("%dms", int(math.Round(tr.TimeMs))),
			Memory:            fmt.Sprintf("%dKB", tr.MemoryKb),
			CompileError:      tr.CompileError,
			RuntimeError:      tr.RuntimeError,
			StatusDescription: tr.StatusDescription,
		})
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

// decodeSubmission rejects oversized, malformed and unknown-field bodies before any
// guard logic runs.
func decodeSubmission(w http.ResponseWriter, r *http.Request) (*createSubmissionRequest, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBodyBytes))
	dec.DisallowUnknownFields()

	var req createSubmissionRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("body must contain a single JSON object")
	}
	return &req, nil
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		common.RespondWithServiceError(w, r, errMissingPrincipal, false)
		return
	}

	sub, err := h.submissionService.GetSubmission(r.Context(), caller, chi.URLParam(r, "submissionID"))
	if err != nil {
		common.RespondWithServiceError(w, r, err, h.exposeDebug)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		common.RespondWithServiceError(w, r, errMissingPrincipal, false)
		return
	}

	q := service.HistoryQuery{
		SheetID:   r.URL.Query().Get("sheetId"),
		ProblemID: r.URL.Query().Get("problemId"),
	}
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	q.PageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	q.Normalize()

	subs, total, err := h.submissionService.History(r.Context(), caller.UserID, q)
	if err != nil {
		common.RespondWithServiceError(w, r, err, h.exposeDebug)
		return
	}

	type PaginatedSubmissionsResponse struct {
		Submissions []model.Submission `json:"submissions"`
		Total       int                `json:"total"`
		Page        int                `json:"page"`
		PageSize    int                `json:"pageSize"`
	}
	common.RespondWithJSON(w, http.StatusOK, PaginatedSubmissionsResponse{
		Submissions: subs,
		Total:       total,
		Page:        q.Page,
		PageSize:    q.PageSize,
	})
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
