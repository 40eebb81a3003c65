package judge

import (
	"context"
	"fmt"

	"sheet_judge/internal/domain/model"
	"sheet_judge/internal/platform/executor"
	"sheet_judge/internal/platform/logger"
)

// DefaultMemoryUnitsPerKb converts a problem's KB limit into the executor's memory_limit.
const DefaultMemoryUnitsPerKb = 1024

type Executor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
}

// Outcome is the aggregate of one judging run.
type Outcome struct {
	Verdict     model.Verdict
	Results     []model.TestResult // executed cases only
	TestsPassed int
	TotalTests  int
	TimeMs      float64 // sum over executed cases
	MemoryKb    int64   // peak over executed cases
}

// Failed returns the first failing result, or nil when every case passed.
func (o *Outcome) Failed() *model.TestResult {
	if o.Verdict.Passed() || len(o.Results) == 0 {
		return nil
	}
	return &o.Results[len(o.Results)-1]
}

type Driver struct {
	exec             Executor
	memoryUnitsPerKb int
}

func NewDriver(exec Executor, memoryUnitsPerKb int) *Driver {
	if memoryUnitsPerKb <= 0 {
		memoryUnitsPerKb = DefaultMemoryUnitsPerKb
	}
	return &Driver{exec: exec, memoryUnitsPerKb: memoryUnitsPerKb}
}

// Run executes the test cases one at a time and stops after the first case that is not
// Accepted. An executor error aborts the run and no partial Outcome is returned.
func (d *Driver) Run(ctx context.Context, problem *model.Problem, sourceCode string) (*Outcome, error) {
	log := logger.FromContext(ctx)
	out := &Outcome{
		Verdict:    model.VerdictAccepted,
		TotalTests: len(problem.TestCases),
		Results:    make([]model.TestResult, 0, len(problem.TestCases)),
	}

	for i, tc := range problem.TestCases {
		res, err := d.exec.Execute(ctx, executor.Request{
			SourceCode:     sourceCode,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			CPUTimeLimit:   float64(problem.TimeLimitMs) / 1000,
			MemoryLimit:    problem.MemoryLimitKb * d.memoryUnitsPerKb,
		})
		if err != nil {
			return nil, fmt.Errorf("test case %d: %w", i+1, err)
		}

		tr := Classify(i+1, res, tc.ExpectedOutput)
		out.Results = append(out.Results, tr)
		out.TimeMs += tr.TimeMs
		if tr.MemoryKb > out.MemoryKb {
			out.MemoryKb = tr.MemoryKb
		}

		if !tr.Passed {
			out.Verdict = tr.Verdict
			log.Debug("judging stopped at failing test", "test", i+1, "verdict", tr.Verdict)
			break
		}
		out.TestsPassed++
	}
	return out, nil
}
