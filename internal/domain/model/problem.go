package model

import (
	"time"
)

type ProblemStatus string

const (
	StatusPublished ProblemStatus = "published"
	StatusDraft     ProblemStatus = "draft" // placeholder, not judgeable yet
)

func (s ProblemStatus) Valid() bool {
	return s == StatusPublished || s == StatusDraft
}

type Sheet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Problem struct {
	SheetID       string        `json:"sheetId"`
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Status        ProblemStatus `json:"status"`
	TimeLimitMs   int           `json:"timeLimitMs"`
	MemoryLimitKb int           `json:"memoryLimitKb"`
	SortOrder     int           `json:"-"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	TestCases     []TestCase    `json:"-"` // hidden, ordered
	TestCount     int           `json:"testCount"`
}

// Judgeable reports whether submissions against the problem may be executed.
func (p *Problem) Judgeable() bool {
	return p.Status == StatusPublished && len(p.TestCases) > 0
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}
