package judge

import (
	"sheet_judge/internal/domain/model"
	"sheet_judge/internal/platform/executor"
)

// Classify turns one execution result into a test verdict. Only a service side "Accepted"
// (status 3) goes through the tolerant comparison against expectedOutput.
func Classify(testCase int, res *executor.Result, expectedOutput string) model.TestResult {
	tr := model.TestResult{
		TestCase: testCase,
		TimeMs:   res.TimeMs,
		MemoryKb: res.MemoryKb,
	}

	switch id := res.StatusID; {
	case id == executor.StatusAccepted:
		if OutputMatches(expectedOutput, res.Stdout) {
			tr.Verdict = model.VerdictAccepted
		} else {
			tr.Verdict = model.VerdictWrongAnswer
		}
	case id == executor.StatusWrongAnswer:
		tr.Verdict = model.VerdictWrongAnswer
	case id == executor.StatusTimeLimitExceeded:
		tr.Verdict = model.VerdictTimeLimitExceeded
	case id == executor.StatusCompilationError:
		tr.Verdict = model.VerdictCompilationError
		tr.CompileError = firstNonEmpty(res.CompileOutput, res.Message)
	case id >= executor.StatusRuntimeErrorFirst && id <= executor.StatusRuntimeErrorLast:
		tr.Verdict = model.VerdictRuntimeError
		tr.RuntimeError = firstNonEmpty(res.Stderr, res.Message)
		tr.StatusDescription = res.StatusDescription
	case id == executor.StatusInternalError:
		tr.Verdict = model.VerdictInternalError
		tr.StatusDescription = res.StatusDescription
	default:
		tr.Verdict = model.VerdictUnknown
		tr.StatusDescription = res.StatusDescription
	}

	tr.Passed = tr.Verdict.Passed()
	return tr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
