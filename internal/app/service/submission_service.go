package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"sheet_judge/internal/app/judge"
	"sheet_judge/internal/common"
	"sheet_judge/internal/common/security"
	"sheet_judge/internal/domain/model"
	"sheet_judge/internal/domain/repository"
	"sheet_judge/internal/platform/executor"
	"sheet_judge/internal/platform/kv"
	"sheet_judge/internal/platform/logger"

	"github.com/google/uuid"
)

// UserLocker serialises judging flows of one user. kv.UserLocker implements it.
type UserLocker interface {
	Acquire(ctx context.Context, userID string) (func(context.Context) error, error)
}

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	driver         *judge.Driver
	locker         UserLocker // nil disables the lock
	cooldown       time.Duration
	now            func() time.Time
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	driver *judge.Driver,
	locker UserLocker,
	cooldown time.Duration,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		driver:         driver,
		locker:         locker,
		cooldown:       cooldown,
		now:            time.Now,
	}
}

type JudgeRequest struct {
	UserID      string
	IPAddress   string
	SheetID     string
	ProblemID   string
	SourceCode  string
	TabSwitches int
	PasteEvents int
	TimeToSolve *int // seconds
}

type JudgeResult struct {
	SubmissionID  string // empty when the row could not be saved
	Verdict       model.Verdict
	TestsPassed   int
	TotalTests    int
	TimeMs        int
	MemoryKb      int64
	AttemptNumber int
	Results       []model.TestResult
	Problem       model.Problem
	Saved         bool
}

var (
	errMissingFields      = common.NewError(common.ErrBadRequest, "Missing required fields: sheetId, problemId and sourceCode")
	errNegativeCounter    = common.NewError(common.ErrBadRequest, "tabSwitches, pasteEvents and timeToSolve must not be negative")
	errProblemNotFound    = common.NewError(common.ErrNotFound, "Problem not found")
	errProblemUnavailable = common.NewError(common.ErrBadRequest, "This problem is not available for submission yet")
	errNulByte            = common.NewError(common.ErrBadRequest, "sheetId, problemId and sourceCode must not contain NUL bytes")
	errDuplicateCode      = common.NewError(common.ErrBadRequest, "You have already submitted this exact code")
	errAlreadyJudging     = common.NewError(common.ErrTooManyRequests, "A submission is already being judged")
)

// JudgeSubmission guards, executes and records one attempt. Rejected attempts leave no row
// behind. A failed insert is logged and reported through JudgeResult.Saved only.
func (s *SubmissionService) JudgeSubmission(ctx context.Context, req JudgeRequest) (*JudgeResult, error) {
	log := logger.FromContext(ctx)

	req.SheetID = strings.TrimSpace(req.SheetID)
	req.ProblemID = strings.TrimSpace(req.ProblemID)
	if req.SheetID == "" || req.ProblemID == "" || strings.TrimSpace(req.SourceCode) == "" {
		return nil, errMissingFields
	}
	// Postgres text cannot hold NUL; such an attempt would be judged but never stored.
	if strings.ContainsRune(req.SheetID+req.ProblemID+req.SourceCode, 0) {
		return nil, errNulByte
	}
	if req.TabSwitches < 0 || req.PasteEvents < 0 || (req.TimeToSolve != nil && *req.TimeToSolve < 0) {
		return nil, errNegativeCounter
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, req.UserID)
		switch {
		case errors.Is(err, kv.ErrLockHeld):
			return nil, errAlreadyJudging
		case err != nil:
			// Redis trouble must not block judging; fall back to the cooldown check alone.
			log.Warn("judging without user lock", "user_id", req.UserID, "error", err)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("releasing user lock", "user_id", req.UserID, "error", err)
				}
			}()
		}
	}

	if err := s.checkCooldown(ctx, req.UserID); err != nil {
		return nil, err
	}

	problem, err := s.problemRepo.FindProblem(ctx, req.SheetID, req.ProblemID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errProblemNotFound
		}
		return nil, fmt.Errorf("SubmissionService.JudgeSubmission find problem: %w", err)
	}
	if !problem.Judgeable() {
		return nil, errProblemUnavailable
	}

	codeHash := security.CodeHash(req.SourceCode)
	dup, err := s.submissionRepo.ExistsWithCodeHash(ctx, req.UserID, req.SheetID, req.ProblemID, codeHash)
	if err != nil {
		return nil, fmt.Errorf("SubmissionService.JudgeSubmission duplicate check: %w", err)
	}
	if dup {
		return nil, errDuplicateCode
	}

	prior, err := s.submissionRepo.CountAttempts(ctx, req.UserID, req.SheetID, req.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("SubmissionService.JudgeSubmission count attempts: %w", err)
	}
	attempt := prior + 1

	outcome, err := s.driver.Run(ctx, problem, req.SourceCode)
	if err != nil {
		if errors.Is(err, executor.ErrNotConfigured) {
			return nil, common.NewError(common.ErrServiceUnavailable, "Judge service is not configured").WithDebug(err)
		}
		return nil, common.NewError(common.ErrServiceUnavailable, "Judge service unavailable").WithDebug(err)
	}

	sub := &model.Submission{
		ID:                 uuid.NewString(),
		UserID:             req.UserID,
		SheetID:            req.SheetID,
		ProblemID:          req.ProblemID,
		SourceCode:         req.SourceCode,
		CodeHash:           codeHash,
		Verdict:            outcome.Verdict,
		TimeMs:             int(math.Round(outcome.TimeMs)),
		MemoryKb:           outcome.MemoryKb,
		TestCasesPassed:    outcome.TestsPassed,
		TotalTestCases:     outcome.TotalTests,
		IPAddress:          req.IPAddress,
		TabSwitches:        req.TabSwitches,
		PasteEvents:        req.PasteEvents,
		TimeToSolveSeconds: req.TimeToSolve,
		AttemptNumber:      attempt,
		SubmittedAt:        s.now().UTC(),
	}
	if failed := outcome.Failed(); failed != nil {
		sub.CompileError = storableText(failed.CompileError)
		sub.RuntimeError = storableText(failed.RuntimeError)
	}

	result := &JudgeResult{
		Verdict:       sub.Verdict,
		TestsPassed:   sub.TestCasesPassed,
		TotalTests:    sub.TotalTestCases,
		TimeMs:        sub.TimeMs,
		MemoryKb:      sub.MemoryKb,
		AttemptNumber: attempt,
		Results:       outcome.Results,
		Problem:       model.Problem{SheetID: problem.SheetID, ID: problem.ID, Title: problem.Title},
	}

	if err := s.submissionRepo.Create(ctx, sub); err != nil {
		log.Error("submission not saved", "user_id", req.UserID, "sheet_id", req.SheetID,
			"problem_id", req.ProblemID, "verdict", sub.Verdict, "error", err)
		return result, nil
	}
	result.SubmissionID = sub.ID
	result.Saved = true

	log.Info("submission judged", "submission_id", sub.ID, "user_id", req.UserID,
		"problem_id", req.ProblemID, "verdict", sub.Verdict, "attempt", attempt,
		"passed", sub.TestCasesPassed, "total", sub.TotalTestCases)
	return result, nil
}

func (s *SubmissionService) checkCooldown(ctx context.Context, userID string) error {
	if s.cooldown <= 0 {
		return nil
	}
	last, ok, err := s.submissionRepo.LastSubmissionTime(ctx, userID)
	if err != nil {
		return fmt.Errorf("SubmissionService.checkCooldown: %w", err)
	}
	if !ok {
		return nil
	}
	remaining := s.cooldown - s.now().Sub(last)
	if remaining <= 0 {
		return nil
	}
	if remaining > s.cooldown { // last submission stamped in the future
		remaining = s.cooldown
	}
	wait := int(math.Ceil(remaining.Seconds()))
	return common.NewError(common.ErrTooManyRequests, fmt.Sprintf("Please wait %ds before submitting again", wait))
}

// GetSubmission returns a stored submission. Other users' submissions read as not found
// unless the caller is an admin.
func (s *SubmissionService) GetSubmission(ctx context.Context, caller model.Principal, id string) (*model.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.NewError(common.ErrNotFound, "Submission not found")
	}
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrNotFound, "Submission not found")
		}
		return nil, fmt.Errorf("SubmissionService.GetSubmission: %w", err)
	}
	if sub.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, common.NewError(common.ErrNotFound, "Submission not found")
	}
	return sub, nil
}

type HistoryQuery struct {
	SheetID   string
	ProblemID string
	Page      int
	PageSize  int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize applies the default page (1) and page size (20), capping the size at 100.
func (q *HistoryQuery) Normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = defaultPageSize
	case q.PageSize > maxPageSize:
		q.PageSize = maxPageSize
	}
}

// History lists the caller's own submissions for one problem, newest first.
func (s *SubmissionService) History(ctx context.Context, userID string, q HistoryQuery) ([]model.Submission, int, error) {
	q.SheetID = strings.TrimSpace(q.SheetID)
	q.ProblemID = strings.TrimSpace(q.ProblemID)
	if q.SheetID == "" || q.ProblemID == "" {
		return nil, 0, common.NewError(common.ErrBadRequest, "sheetId and problemId are required")
	}
	q.Normalize()
	subs, total, err := s.submissionRepo.ListForUserProblem(ctx, userID, q.SheetID, q.ProblemID, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("SubmissionService.History: %w", err)
	}
	return subs, total, nil
}

// storableText drops NUL and replaces invalid UTF-8, since executor stderr is passed
// through byte for byte. Empty text is stored as NULL.
func storableText(s string) *string {
	s = strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "\uFFFD")
	if s == "" {
		return nil
	}
	return &s
}
