package model

import "time"

// Submission is written once after judging and never updated.
type Submission struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	SheetID            string    `json:"sheetId"`
	ProblemID          string    `json:"problemId"`
	SourceCode         string    `json:"sourceCode"`
	CodeHash           string    `json:"-"`
	Verdict            Verdict   `json:"verdict"`
	TimeMs             int       `json:"timeMs"`
	MemoryKb           int64     `json:"memoryKb"`
	TestCasesPassed    int       `json:"testCasesPassed"`
	TotalTestCases     int       `json:"totalTestCases"`
	CompileError       *string   `json:"compileError,omitempty"`
	RuntimeError       *string   `json:"runtimeError,omitempty"`
	IPAddress          string    `json:"-"`
	TabSwitches        int       `json:"tabSwitches"`
	PasteEvents        int       `json:"pasteEvents"`
	TimeToSolveSeconds *int      `json:"timeToSolve,omitempty"`
	AttemptNumber      int       `json:"attemptNumber"`
	SubmittedAt        time.Time `json:"submittedAt"`
}

// TestResult is the classified outcome of one executed test case.
type TestResult struct {
	TestCase          int     `json:"testCase"` // 1-based
	Verdict           Verdict `json:"verdict"`
	Passed            bool    `json:"passed"`
	TimeMs            float64 `json:"-"`
	MemoryKb          int64   `json:"-"`
	CompileError      string  `json:"-"`
	RuntimeError      string  `json:"-"`
	StatusDescription string  `json:"-"`
}
