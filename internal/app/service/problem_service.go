package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"sheet_judge/internal/common"
	"sheet_judge/internal/domain/model"
	"sheet_judge/internal/domain/repository"
	"sheet_judge/internal/platform/logger"

	"github.com/gosimple/slug"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
}

func NewProblemService(problemRepo repository.ProblemRepository) *ProblemService {
	return &ProblemService{problemRepo: problemRepo}
}

// ListProblems returns the problems of a sheet without test data. Drafts are only listed
// for admins.
func (s *ProblemService) ListProblems(ctx context.Context, caller model.Principal, sheetID string) (*model.Sheet, []model.Problem, error) {
	sheet, err := s.problemRepo.GetSheet(ctx, sheetID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.NewError(common.ErrNotFound, "Sheet not found")
		}
		return nil, nil, fmt.Errorf("ProblemService.ListProblems: %w", err)
	}

	status := model.StatusPublished
	if caller.IsAdmin() {
		status = ""
	}
	problems, err := s.problemRepo.ListSheetProblems(ctx, sheetID, status)
	if err != nil {
		return nil, nil, fmt.Errorf("ProblemService.ListProblems: %w", err)
	}
	return sheet, problems, nil
}

func (s *ProblemService) GetProblem(ctx context.Context, caller model.Principal, sheetID, problemID string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblem(ctx, sheetID, problemID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errProblemNotFound
		}
		return nil, fmt.Errorf("ProblemService.GetProblem: %w", err)
	}
	if problem.Status != model.StatusPublished && !caller.IsAdmin() {
		return nil, errProblemNotFound
	}
	return problem, nil
}

// ImportSheet parses a TOML sheet and replaces the stored sheet with it. Ids default to the
// slug of the title.
func (s *ProblemService) ImportSheet(ctx context.Context, r io.Reader) (*model.Sheet, []model.Problem, error) {
	sf, err := decodeSheet(r)
	if err != nil {
		return nil, nil, common.NewError(common.ErrValidation, err.Error())
	}
	sheet, problems, err := sf.toModel()
	if err != nil {
		return nil, nil, common.NewError(common.ErrValidation, err.Error())
	}

	if err := s.problemRepo.UpsertSheet(ctx, sheet, problems); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, nil, common.NewError(common.ErrConflict, err.Error())
		}
		return nil, nil, fmt.Errorf("ProblemService.ImportSheet: %w", err)
	}

	logger.FromContext(ctx).Info("sheet imported", "sheet_id", sheet.ID, "problems", len(problems))
	return sheet, problems, nil
}

// ExportSheet renders a stored sheet, drafts and test data included, as TOML.
func (s *ProblemService) ExportSheet(ctx context.Context, sheetID string) ([]byte, error) {
	sheet, err := s.problemRepo.GetSheet(ctx, sheetID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrNotFound, "Sheet not found")
		}
		return nil, fmt.Errorf("ProblemService.ExportSheet: %w", err)
	}
	listed, err := s.problemRepo.ListSheetProblems(ctx, sheetID, "")
	if err != nil {
		return nil, fmt.Errorf("ProblemService.ExportSheet: %w", err)
	}

	problems := make([]model.Problem, 0, len(listed))
	for _, p := range listed {
		full, err := s.problemRepo.FindProblem(ctx, sheetID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("ProblemService.ExportSheet problem %s: %w", p.ID, err)
		}
		problems = append(problems, *full)
	}
	doc, err := encodeSheet(sheet, problems)
	if err != nil {
		return nil, common.NewError(common.ErrInternalServer, "Could not render the sheet file").WithDebug(err)
	}
	return doc, nil
}

func (sf *sheetFile) toModel() (*model.Sheet, []model.Problem, error) {
	sheetID := sf.ID
	if sheetID == "" {
		sheetID = sf.Title
	}
	sheetID = slug.Make(sheetID)
	if sheetID == "" || sf.Title == "" {
		return nil, nil, errors.New("sheet needs a title")
	}
	if len(sf.Problems) == 0 {
		return nil, nil, fmt.Errorf("sheet %q has no problems", sheetID)
	}

	problems := make([]model.Problem, 0, len(sf.Problems))
	for i, pf := range sf.Problems {
		id := pf.ID
		if id == "" {
			id = pf.Title
		}
		id = slug.Make(id)
		if id == "" {
			return nil, nil, fmt.Errorf("problem #%d needs a title or id", i+1)
		}

		status := model.ProblemStatus(pf.Status)
		if status == "" {
			status = model.StatusPublished
		}
		if !status.Valid() {
			return nil, nil, fmt.Errorf("problem %q: unknown status %q", id, pf.Status)
		}
		if pf.TimeLimitMs <= 0 || pf.MemoryLimitKb <= 0 {
			return nil, nil, fmt.Errorf("problem %q: time_limit_ms and memory_limit_kb must be positive", id)
		}
		if status == model.StatusPublished && len(pf.Tests) == 0 {
			return nil, nil, fmt.Errorf("problem %q: a published problem needs at least one test", id)
		}

		p := model.Problem{
			SheetID:       sheetID,
			ID:            id,
			Title:         pf.Title,
			Status:        status,
			TimeLimitMs:   pf.TimeLimitMs,
			MemoryLimitKb: pf.MemoryLimitKb,
			TestCount:     len(pf.Tests),
		}
		for _, tf := range pf.Tests {
			p.TestCases = append(p.TestCases, model.TestCase{Input: tf.Input, ExpectedOutput: tf.Output})
		}
		problems = append(problems, p)
	}
	return &model.Sheet{ID: sheetID, Title: sf.Title}, problems, nil
}
