package model

type Verdict string

const (
	VerdictAccepted          Verdict = "Accepted"
	VerdictWrongAnswer       Verdict = "WrongAnswer"
	VerdictTimeLimitExceeded Verdict = "TimeLimitExceeded"
	VerdictCompilationError  Verdict = "CompilationError"
	VerdictRuntimeError      Verdict = "RuntimeError"
	VerdictInternalError     Verdict = "InternalError"
	VerdictUnknown           Verdict = "Unknown"
)

func (v Verdict) Passed() bool {
	return v == VerdictAccepted
}
