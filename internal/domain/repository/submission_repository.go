package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sheet_judge/internal/common"
	"sheet_judge/internal/domain/model"
)

type SubmissionRepository interface {
	// LastSubmissionTime returns the newest submitted_at of the user across all problems.
	LastSubmissionTime(ctx context.Context, userID string) (time.Time, bool, error)
	ExistsWithCodeHash(ctx context.Context, userID, sheetID, problemID, codeHash string) (bool, error)
	CountAttempts(ctx context.Context, userID, sheetID, problemID string) (int, error)
	// Create inserts sub; a code hash collision for the same triple yields common.ErrConflict.
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	// ListForUserProblem returns one page, newest first, and the total count.
	ListForUserProblem(ctx context.Context, userID, sheetID, problemID string, limit, offset int) ([]model.Submission, int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, sheet_id, problem_id, source_code, code_hash, verdict,
        time_ms, memory_kb, test_cases_passed, total_test_cases, compile_error, runtime_error,
        COALESCE(ip_address, ''), tab_switches, paste_events, time_to_solve_seconds,
        attempt_number, submitted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.UserID, &s.SheetID, &s.ProblemID, &s.SourceCode, &s.CodeHash, &s.Verdict,
		&s.TimeMs, &s.MemoryKb, &s.TestCasesPassed, &s.TotalTestCases, &s.CompileError, &s.RuntimeError,
		&s.IPAddress, &s.TabSwitches, &s.PasteEvents, &s.TimeToSolveSeconds,
		&s.AttemptNumber, &s.SubmittedAt)
	return s, err
}

func (r *pgSubmissionRepository) LastSubmissionTime(ctx context.Context, userID string) (time.Time, bool, error) {
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(submitted_at) FROM submissions WHERE user_id = $1`, userID,
	).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("pgSubmissionRepository.LastSubmissionTime: %w", err)
	}
	return last.Time, last.Valid, nil
}

func (r *pgSubmissionRepository) ExistsWithCodeHash(ctx context.Context, userID, sheetID, problemID, codeHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM submissions
            WHERE user_id = $1 AND sheet_id = $2 AND problem_id = $3 AND code_hash = $4)`,
		userID, sheetID, problemID, codeHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.ExistsWithCodeHash: %w", err)
	}
	return exists, nil
}

func (r *pgSubmissionRepository) CountAttempts(ctx context.Context, userID, sheetID, problemID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM submissions
        WHERE user_id = $1 AND sheet_id = $2 AND problem_id = $3`,
		userID, sheetID, problemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountAttempts: %w", err)
	}
	return n, nil
}

func (r *pgSubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, sheet_id, problem_id, source_code, code_hash, verdict,
                  time_ms, memory_kb, test_cases_passed, total_test_cases, compile_error, runtime_error,
                  ip_address, tab_switches, paste_events, time_to_solve_seconds, attempt_number, submitted_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.SheetID, s.ProblemID, s.SourceCode, s.CodeHash, s.Verdict,
		s.TimeMs, s.MemoryKb, s.TestCasesPassed, s.TotalTestCases, s.CompileError, s.RuntimeError,
		s.IPAddress, s.TabSwitches, s.PasteEvents, s.TimeToSolveSeconds, s.AttemptNumber, s.SubmittedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("pgSubmissionRepository.Create: %w: %w", common.ErrConflict, err)
		}
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) ListForUserProblem(ctx context.Context, userID, sheetID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	total, err := r.CountAttempts(ctx, userID, sheetID, problemID)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+submissionColumns+`
        FROM submissions
        WHERE user_id = $1 AND sheet_id = $2 AND problem_id = $3
        ORDER BY submitted_at DESC, attempt_number DESC
        LIMIT $4 OFFSET $5`, userID, sheetID, problemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem scan: %w", err)
		}
		subs = append(subs, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem rows.Err: %w", err)
	}
	return subs, total, nil
}
