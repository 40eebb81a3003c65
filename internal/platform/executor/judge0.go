// Package executor talks to the sandboxed execution service (Judge0).
package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("execution service is not configured")
	ErrUnavailable   = errors.New("execution service unavailable")
)

// Judge0 status ids used by the verdict resolver.
const (
	StatusInQueue           = 1
	StatusProcessing        = 2
	StatusAccepted          = 3
	StatusWrongAnswer       = 4
	StatusTimeLimitExceeded = 5
	StatusCompilationError  = 6
	StatusRuntimeErrorFirst = 7 // SIGSEGV
	StatusRuntimeErrorLast  = 12 // Other
	StatusInternalError     = 13
)

// Request is one sandboxed run of SourceCode against Stdin.
type Request struct {
	SourceCode     string
	Stdin          string
	ExpectedOutput string
	CPUTimeLimit   float64 // seconds
	MemoryLimit    int     // service units
}

// Result is a decoded execution outcome.
type Result struct {
	StatusID          int
	StatusDescription string
	Stdout            string
	Stderr            string
	CompileOutput     string
	Message           string
	TimeMs            float64
	MemoryKb          int64
}

type submissionRequest struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput string  `json:"expected_output"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
}

type submissionResponse struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string    `json:"stdout"`
	Stderr        *string    `json:"stderr"`
	CompileOutput *string    `json:"compile_output"`
	Message       *string    `json:"message"`
	Time          flexNumber `json:"time"`
	Memory        flexNumber `json:"memory"`
}

// flexNumber accepts a JSON number, a quoted number or null.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*n = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*n = flexNumber(raw)
	return nil
}

func (n flexNumber) float() (float64, bool) {
	if n == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(n), 64)
	return f, err == nil
}

type Judge0Client struct {
	baseURL    string
	authToken  string
	languageID int
	httpClient *http.Client
}

// NewJudge0Client builds a client. A zero timeout leaves the blocking call bounded only by
// the request context.
func NewJudge0Client(baseURL, authToken string, languageID int, timeout time.Duration) *Judge0Client {
	return &Judge0Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		languageID: languageID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Execute submits one run with wait=true and blocks until the sandbox finishes.
func (c *Judge0Client) Execute(ctx context.Context, req Request) (*Result, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(submissionRequest{
		SourceCode:     encode(req.SourceCode),
		LanguageID:     c.languageID,
		Stdin:          encode(req.Stdin),
		ExpectedOutput: encode(req.ExpectedOutput),
		CPUTimeLimit:   req.CPUTimeLimit,
		MemoryLimit:    req.MemoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal judge0 request: %w", err)
	}

	url := c.baseURL + "/submissions?base64_encoded=true&wait=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build judge0 request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("X-Auth-Token", c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return out.toResult()
}

func (r *submissionResponse) toResult() (*Result, error) {
	res := &Result{
		StatusID:          r.Status.ID,
		StatusDescription: r.Status.Description,
	}
	var err error
	if res.Stdout, err = decode(r.Stdout); err != nil {
		return nil, fmt.Errorf("%w: decode stdout: %v", ErrUnavailable, err)
	}
	if res.Stderr, err = decode(r.Stderr); err != nil {
		return nil, fmt.Errorf("%w: decode stderr: %v", ErrUnavailable, err)
	}
	if res.CompileOutput, err = decode(r.CompileOutput); err != nil {
		return nil, fmt.Errorf("%w: decode compile_output: %v", ErrUnavailable, err)
	}
	if res.Message, err = decode(r.Message); err != nil {
		return nil, fmt.Errorf("%w: decode message: %v", ErrUnavailable, err)
	}
	if seconds, ok := r.Time.float(); ok {
		res.TimeMs = seconds * 1000
	}
	if kb, ok := r.Memory.float(); ok {
		res.MemoryKb = int64(kb)
	}
	return res, nil
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// decode accepts line-wrapped base64 as Judge0 emits it.
func decode(s *string) (string, error) {
	if s == nil || *s == "" {
		return "", nil
	}
	b, err := base64.StdEncoding.DecodeString(*s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
