package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"sheet_judge/internal/common"
	"sheet_judge/internal/domain/model"
	"sheet_judge/internal/platform/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database: TEST_DATABASE_URL=postgres://... go test ./...
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.Connect(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func TestPgRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sheetID := "test-" + uuid.NewString()[:8]
	t.Cleanup(func() {
		db.Exec(`DELETE FROM submissions WHERE sheet_id = $1`, sheetID)
		db.Exec(`DELETE FROM sheets WHERE id = $1`, sheetID)
	})

	problems := NewPgProblemRepository(db)
	sheet, ps := sampleSheet()
	sheet.ID = sheetID
	require.NoError(t, problems.UpsertSheet(ctx, sheet, ps))

	p, err := problems.FindProblem(ctx, sheetID, "sum-of-two")
	require.NoError(t, err)
	require.Len(t, p.TestCases, 2)
	assert.Equal(t, "12", p.TestCases[0].ExpectedOutput)

	listed, err := problems.ListSheetProblems(ctx, sheetID, model.StatusPublished)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 2, listed[0].TestCount)

	subs := NewPgSubmissionRepository(db)
	userID := "user-" + uuid.NewString()[:8]
	sub := &model.Submission{
		ID: uuid.NewString(), UserID: userID, SheetID: sheetID, ProblemID: "sum-of-two",
		SourceCode: "int main(){}", CodeHash: "abc", Verdict: model.VerdictAccepted,
		TestCasesPassed: 2, TotalTestCases: 2, AttemptNumber: 1,
		SubmittedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, subs.Create(ctx, sub))

	last, ok, err := subs.LastSubmissionTime(ctx, userID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, sub.SubmittedAt.Equal(last))

	exists, err := subs.ExistsWithCodeHash(ctx, userID, sheetID, "sum-of-two", "abc")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := *sub
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, subs.Create(ctx, &dup), common.ErrConflict)

	got, err := subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictAccepted, got.Verdict)
	assert.Nil(t, got.CompileError)

	page, total, err := subs.ListForUserProblem(ctx, userID, sheetID, "sum-of-two", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, page, 1)
}
