package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"sheet_judge/internal/common"
	"sheet_judge/internal/domain/model"
)

// In-memory implementations back STORAGE_BACKEND=memory and the service tests.

type memProblemRepository struct {
	mu       sync.RWMutex
	sheets   map[string]model.Sheet
	problems map[string][]model.Problem // by sheet id, in sheet order
}

func NewMemoryProblemRepository() ProblemRepository {
	return &memProblemRepository{
		sheets:   map[string]model.Sheet{},
		problems: map[string][]model.Problem{},
	}
}

func (r *memProblemRepository) FindProblem(_ context.Context, sheetID, problemID string) (*model.Problem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.problems[sheetID] {
		if p.ID == problemID {
			p.TestCases = append([]model.TestCase(nil), p.TestCases...)
			return &p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memProblemRepository) ListSheetProblems(_ context.Context, sheetID string, status model.ProblemStatus) ([]model.Problem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Problem{}
	for _, p := range r.problems[sheetID] {
		if status != "" && p.Status != status {
			continue
		}
		p.TestCases = nil
		out = append(out, p)
	}
	return out, nil
}

func (r *memProblemRepository) GetSheet(_ context.Context, sheetID string) (*model.Sheet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sheets[sheetID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
}

func (r *memProblemRepository) UpsertSheet(_ context.Context, sheet *model.Sheet, problems []model.Problem) error {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(problems))
	stored := make([]model.Problem, 0, len(problems))
	for i, p := range problems {
		if seen[p.ID] {
			return common.Errorf("problem %q listed twice: %w", p.ID, common.ErrConflict)
		}
		seen[p.ID] = true
		p.SheetID = sheet.ID
		p.SortOrder = i + 1
		p.TestCases = append([]model.TestCase(nil), p.TestCases...)
		p.TestCount = len(p.TestCases)
		p.CreatedAt, p.UpdatedAt = now, now
		stored = append(stored, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := *sheet
	if prev, ok := r.sheets[sheet.ID]; ok {
		s.CreatedAt = prev.CreatedAt
	} else {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.sheets[sheet.ID] = s
	r.problems[sheet.ID] = stored
	return nil
}

type memSubmissionRepository struct {
	mu   sync.RWMutex
	subs []model.Submission // insertion order
}

func NewMemorySubmissionRepository() SubmissionRepository {
	return &memSubmissionRepository{}
}

func (r *memSubmissionRepository) LastSubmissionTime(_ context.Context, userID string) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last time.Time
	found := false
	for _, s := range r.subs {
		if s.UserID == userID && (!found || s.SubmittedAt.After(last)) {
			last, found = s.SubmittedAt, true
		}
	}
	return last, found, nil
}

func (r *memSubmissionRepository) ExistsWithCodeHash(_ context.Context, userID, sheetID, problemID, codeHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.UserID == userID && s.SheetID == sheetID && s.ProblemID == problemID && s.CodeHash == codeHash {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSubmissionRepository) CountAttempts(_ context.Context, userID, sheetID, problemID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.subs {
		if s.UserID == userID && s.SheetID == sheetID && s.ProblemID == problemID {
			n++
		}
	}
	return n, nil
}

func (r *memSubmissionRepository) Create(_ context.Context, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ID == sub.ID {
			return common.Errorf("submission %s already stored: %w", sub.ID, common.ErrConflict)
		}
		if s.UserID == sub.UserID && s.SheetID == sub.SheetID && s.ProblemID == sub.ProblemID && s.CodeHash == sub.CodeHash {
			return common.Errorf("duplicate code hash: %w", common.ErrConflict)
		}
	}
	r.subs = append(r.subs, *sub)
	return nil
}

func (r *memSubmissionRepository) GetByID(_ context.Context, id string) (*model.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memSubmissionRepository) ListForUserProblem(_ context.Context, userID, sheetID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	r.mu.RLock()
	matched := []model.Submission{}
	for _, s := range r.subs {
		if s.UserID == userID && s.SheetID == sheetID && s.ProblemID == problemID {
			matched = append(matched, s)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
		}
		return matched[i].AttemptNumber > matched[j].AttemptNumber
	})

	total := len(matched)
	if offset >= total {
		return []model.Submission{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
