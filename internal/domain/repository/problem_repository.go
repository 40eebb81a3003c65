package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sheet_judge/internal/common"
	"sheet_judge/internal/domain/model"
)

type ProblemRepository interface {
	// FindProblem returns the problem with its test cases in evaluation order.
	FindProblem(ctx context.Context, sheetID, problemID string) (*model.Problem, error)
	// ListSheetProblems returns problems without test data; an empty status lists all.
	ListSheetProblems(ctx context.Context, sheetID string, status model.ProblemStatus) ([]model.Problem, error)
	GetSheet(ctx context.Context, sheetID string) (*model.Sheet, error)
	// UpsertSheet replaces the sheet and its whole problem set atomically.
	UpsertSheet(ctx context.Context, sheet *model.Sheet, problems []model.Problem) error
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) FindProblem(ctx context.Context, sheetID, problemID string) (*model.Problem, error) {
	query := `
        SELECT p.sheet_id, p.id, p.title, p.status, p.time_limit_ms, p.memory_limit_kb,
               p.sort_order, p.created_at, p.updated_at
        FROM problems p
        WHERE p.sheet_id = $1 AND p.id = $2`

	p := &model.Problem{}
	err := r.db.QueryRowContext(ctx, query, sheetID, problemID).Scan(
		&p.SheetID, &p.ID, &p.Title, &p.Status, &p.TimeLimitMs, &p.MemoryLimitKb,
		&p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblem: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT input, expected_output FROM test_cases
        WHERE sheet_id = $1 AND problem_id = $2
        ORDER BY sort_order ASC`, sheetID, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindProblem test cases query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.Input, &tc.ExpectedOutput); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.FindProblem test cases scan: %w", err)
		}
		p.TestCases = append(p.TestCases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindProblem rows.Err: %w", err)
	}
	p.TestCount = len(p.TestCases)
	return p, nil
}

func (r *pgProblemRepository) ListSheetProblems(ctx context.Context, sheetID string, status model.ProblemStatus) ([]model.Problem, error) {
	query := `
        SELECT p.sheet_id, p.id, p.title, p.status, p.time_limit_ms, p.memory_limit_kb,
               p.sort_order, p.created_at, p.updated_at,
               (SELECT COUNT(*) FROM test_cases tc WHERE tc.sheet_id = p.sheet_id AND tc.problem_id = p.id)
        FROM problems p
        WHERE p.sheet_id = $1 AND ($2 = '' OR p.status = $2)
        ORDER BY p.sort_order ASC, p.id ASC`

	rows, err := r.db.QueryContext(ctx, query, sheetID, string(status))
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListSheetProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.SheetID, &p.ID, &p.Title, &p.Status, &p.TimeLimitMs, &p.MemoryLimitKb,
			&p.SortOrder, &p.CreatedAt, &p.UpdatedAt, &p.TestCount); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListSheetProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListSheetProblems rows.Err: %w", err)
	}
	return problems, nil
}

func (r *pgProblemRepository) GetSheet(ctx context.Context, sheetID string) (*model.Sheet, error) {
	s := &model.Sheet{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sheets WHERE id = $1`, sheetID,
	).Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.GetSheet: %w", err)
	}
	return s, nil
}

func (r *pgProblemRepository) UpsertSheet(ctx context.Context, sheet *model.Sheet, problems []model.Problem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertSheet begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO sheets (id, title) VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, updated_at = CURRENT_TIMESTAMP`,
		sheet.ID, sheet.Title)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertSheet sheet: %w", err)
	}

	// test_cases cascade with their problem
	if _, err = tx.ExecContext(ctx, `DELETE FROM problems WHERE sheet_id = $1`, sheet.ID); err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertSheet clear: %w", err)
	}

	problemStmt, err := tx.PrepareContext(ctx, `
        INSERT INTO problems (sheet_id, id, title, status, time_limit_ms, memory_limit_kb, sort_order)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertSheet prepare problem: %w", err)
	}
	defer problemStmt.Close()

	testStmt, err := tx.PrepareContext(ctx, `
        INSERT INTO test_cases (sheet_id, problem_id, sort_order, input, expected_output)
        VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertSheet prepare test case: %w", err)
	}
	defer testStmt.Close()

	for i, p := range problems {
		if _, err := problemStmt.ExecContext(ctx, sheet.ID, p.ID, p.Title, p.Status, p.TimeLimitMs, p.MemoryLimitKb, i+1); err != nil {
			if common.IsUniqueViolation(err) {
				return fmt.Errorf("problem %q listed twice: %w", p.ID, common.ErrConflict)
			}
			return fmt.Errorf("pgProblemRepository.UpsertSheet exec for problem %s: %w", p.ID, err)
		}
		for j, tc := range p.TestCases {
			if _, err := testStmt.ExecContext(ctx, sheet.ID, p.ID, j+1, tc.Input, tc.ExpectedOutput); err != nil {
				return fmt.Errorf("pgProblemRepository.UpsertSheet exec for test %d of %s: %w", j+1, p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertSheet commit: %w", err)
	}
	return nil
}
