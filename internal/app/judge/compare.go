// Package judge runs a submission against a problem's test cases and classifies the outcome.
package judge

import (
	"math"
	"strconv"
	"strings"
)

const (
	// FloatTolerance is the absolute difference under which two numeric tokens are equal.
	FloatTolerance = 1e-5
	// absorbs binary representation error, so 3.14159 vs 3.14158 counts as within tolerance
	representationSlack = 1e-12
)

// OutputMatches compares whitespace separated tokens. Tokens match when they are equal
// ignoring case, or when both parse as floats closer than FloatTolerance. Integers take the
// float path too, so values beyond 2^53 may compare equal after rounding.
func OutputMatches(expected, actual string) bool {
	want := strings.Fields(expected)
	got := strings.Fields(actual)
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !tokensMatch(want[i], got[i]) {
			return false
		}
	}
	return true
}

func tokensMatch(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	af, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return false
	}
	bf, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return false
	}
	return math.Abs(af-bf) < FloatTolerance+representationSlack
}
