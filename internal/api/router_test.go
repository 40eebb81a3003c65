package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sheet_judge/internal/app/judge"
	"sheet_judge/internal/app/service"
	"sheet_judge/internal/common/security"
	"sheet_judge/internal/domain/model"
	"sheet_judge/internal/domain/repository"
	"sheet_judge/internal/platform/executor"
	"sheet_judge/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSheet = `
id = "dp-basics"
title = "DP basics"

[[problems]]
title = "Sum of Two"
time_limit_ms = 1000
memory_limit_kb = 262144

  [[problems.tests]]
  input = "5 7"
  output = "12"

  [[problems.tests]]
  input = "1 1"
  output = "2"

[[problems]]
title = "Coming soon"
time_limit_ms = 1000
memory_limit_kb = 262144
status = "draft"
`

// fakeJudge0 adds the two integers of stdin. failStatus > 0 turns every call into that HTTP status.
type fakeJudge0 struct {
	failStatus atomic.Int32
	calls      atomic.Int32
}

func (f *fakeJudge0) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if code := f.failStatus.Load(); code > 0 {
		http.Error(w, "judge0 exploded", int(code))
		return
	}
	var body struct {
		SourceCode string `json:"source_code"`
		Stdin      string `json:"stdin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	src, _ := base64.StdEncoding.DecodeString(body.SourceCode)
	stdin, _ := base64.StdEncoding.DecodeString(body.Stdin)

	if strings.Contains(string(src), "syntax error") {
		fmt.Fprintf(w, `{"status":{"id":6,"description":"Compilation Error"},"compile_output":%q}`,
			base64.StdEncoding.EncodeToString([]byte("main.cpp:1: error")))
		return
	}
	var a, b int
	fmt.Sscan(string(stdin), &a, &b)
	out := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d\n", a+b)))
	fmt.Fprintf(w, `{"status":{"id":3,"description":"Accepted"},"stdout":%q,"time":"0.004","memory":1024}`, out)
}

type testServer struct {
	srv       *httptest.Server
	judge0    *fakeJudge0
	userToken string
	other     string
	admin     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, repository.NewMemorySubmissionRepository(), 0)
}

func newTestServerWith(t *testing.T, subs repository.SubmissionRepository, cooldown time.Duration) *testServer {
	t.Helper()
	judge0 := &fakeJudge0{}
	judgeSrv := httptest.NewServer(judge0)
	t.Cleanup(judgeSrv.Close)

	problems := repository.NewMemoryProblemRepository()
	problemService := service.NewProblemService(problems)
	_, _, err := problemService.ImportSheet(context.Background(), strings.NewReader(testSheet))
	require.NoError(t, err)

	exec := executor.NewJudge0Client(judgeSrv.URL, "", 54, 5*time.Second)
	submissionService := service.NewSubmissionService(subs, problems, judge.NewDriver(exec, 0), nil, cooldown)

	tokenAuth := security.NewTokenAuth([]byte("router-test-secret"))
	handler := NewRouter(RouterConfig{
		TokenAuth:      tokenAuth,
		Logger:         logger.New("sheet_judge_test", "test", "error", false),
		AllowedOrigins: []string{"http://localhost:3000"},
		ExposeDebug:    true,
	}, problemService, submissionService)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	token := func(userID, role string) string {
		tok, err := security.GenerateToken(tokenAuth, userID, role, time.Hour)
		require.NoError(t, err)
		return tok
	}
	return &testServer{
		srv:       srv,
		judge0:    judge0,
		userToken: token("u1", model.RoleUser),
		other:     token("u2", model.RoleUser),
		admin:     token("root", model.RoleAdmin),
	}
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func submitBody(code string) string {
	b, _ := json.Marshal(map[string]any{
		"sheetId": "dp-basics", "problemId": "sum-of-two", "sourceCode": code,
		"tabSwitches": 1, "pasteEvents": 0,
	})
	return string(b)
}

func TestSubmitAccepted(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("int main(){ /* v1 */ }"))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Accepted", body["verdict"])
	assert.Equal(t, true, body["passed"])
	assert.EqualValues(t, 2, body["testsPassed"])
	assert.EqualValues(t, 2, body["totalTests"])
	assert.Equal(t, "8ms", body["time"])
	assert.Equal(t, "1024KB", body["memory"])
	assert.EqualValues(t, 1, body["attemptNumber"])
	assert.NotEmpty(t, body["submissionId"])
	assert.NotContains(t, body, "warning")
	assert.Equal(t, map[string]any{"id": "sum-of-two", "title": "Sum of Two"}, body["problem"])

	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.EqualValues(t, 1, first["testCase"])
	assert.Equal(t, "4ms", first["time"])
	assert.NotContains(t, first, "compileError")

	// owner can read it back, others cannot
	id := body["submissionId"].(string)
	resp, got := ts.do(t, http.MethodGet, "/api/v1/submissions/"+id, ts.userToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Accepted", got["verdict"])
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/submissions/"+id, ts.other, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, hist := ts.do(t, http.MethodGet, "/api/v1/submissions?sheetId=dp-basics&problemId=sum-of-two", ts.userToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, hist["total"])
	assert.EqualValues(t, 20, hist["pageSize"])
}

func TestSubmitCompilationError(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("syntax error"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CompilationError", body["verdict"])
	assert.Equal(t, false, body["passed"])
	assert.EqualValues(t, 0, body["testsPassed"])

	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "main.cpp:1: error", results[0].(map[string]any)["compileError"])
	assert.EqualValues(t, 1, ts.judge0.calls.Load())
}

func TestSubmitRejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		token  string
		body   string
		status int
		errMsg string
	}{
		{"no token", "", submitBody("x"), http.StatusUnauthorized, "Authorization token required"},
		{"bad token", "not-a-jwt", submitBody("x"), http.StatusUnauthorized, "Invalid or expired token"},
		{"unknown field", ts.userToken, `{"sheetId":"dp-basics","problemId":"sum-of-two","sourceCode":"x","lang":"py"}`, http.StatusBadRequest, ""},
		{"malformed", ts.userToken, `{"sheetId":`, http.StatusBadRequest, ""},
		{"trailing data", ts.userToken, submitBody("x") + `{}`, http.StatusBadRequest, "Invalid request: body must contain a single JSON object"},
		{"fractional counter", ts.userToken, `{"sheetId":"dp-basics","problemId":"sum-of-two","sourceCode":"x","tabSwitches":1.5}`, http.StatusBadRequest, ""},
		{"missing fields", ts.userToken, `{"sheetId":"dp-basics"}`, http.StatusBadRequest, "Missing required fields: sheetId, problemId and sourceCode"},
		{"unknown problem", ts.userToken, `{"sheetId":"dp-basics","problemId":"nope","sourceCode":"x"}`, http.StatusNotFound, "Problem not found"},
		{"draft problem", ts.userToken, `{"sheetId":"dp-basics","problemId":"coming-soon","sourceCode":"x"}`, http.StatusBadRequest, "This problem is not available for submission yet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, body["error"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
	assert.Zero(t, ts.judge0.calls.Load())
}

func TestSubmitDuplicate(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("int main(){}"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("  int main(){}\n"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "You have already submitted this exact code", body["error"])
}

func TestSubmitJudgeUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.judge0.failStatus.Store(http.StatusBadGateway)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("int main(){}"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body["error"].(string), "Judge service unavailable: "))
	assert.Contains(t, body["error"], "502")
}

func TestSheetRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/sheets/dp-basics/problems", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["problems"], 1)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/sheets/dp-basics/problems", ts.admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["problems"], 2)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/sheets/dp-basics/problems/sum-of-two", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["testCount"])
	assert.NotContains(t, body, "testCases")

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/sheets/dp-basics/problems/coming-soon", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	newSheet := "title = \"Graphs\"\n[[problems]]\ntitle = \"BFS\"\ntime_limit_ms = 1000\nmemory_limit_kb = 65536\n[[problems.tests]]\ninput = \"1\"\noutput = \"1\"\n"
	resp, _ = ts.do(t, http.MethodPut, "/api/v1/sheets", ts.userToken, newSheet)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPut, "/api/v1/sheets", ts.admin, newSheet)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "graphs", body["sheet"].(map[string]any)["id"])

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/sheets/graphs/export", ts.admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/toml", resp.Header.Get("Content-Type"))

	resp, _ = ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// pgLikeSubmissions refuses what a Postgres text column refuses, and optionally every insert.
type pgLikeSubmissions struct {
	repository.SubmissionRepository
	down bool
}

func (r *pgLikeSubmissions) Create(ctx context.Context, sub *model.Submission) error {
	if r.down {
		return errors.New("pgSubmissionRepository.Create: conn closed")
	}
	if strings.ContainsRune(sub.SourceCode, 0) {
		return errors.New(`pgSubmissionRepository.Create: ERROR: invalid byte sequence for encoding "UTF8": 0x00 (SQLSTATE 22021)`)
	}
	return r.SubmissionRepository.Create(ctx, sub)
}

func TestSubmitNotSavedWarning(t *testing.T) {
	ts := newTestServerWith(t, &pgLikeSubmissions{SubmissionRepository: repository.NewMemorySubmissionRepository(), down: true}, 0)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("int main(){}"))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Accepted", body["verdict"])
	assert.Equal(t, "Submission not saved to history", body["warning"])
	assert.NotContains(t, body, "submissionId")
	assert.Len(t, body["results"], 2)
}

func TestSubmitNulSourceIsGuarded(t *testing.T) {
	subs := &pgLikeSubmissions{SubmissionRepository: repository.NewMemorySubmissionRepository()}
	ts := newTestServerWith(t, subs, 5*time.Second)

	for i := 0; i < 3; i++ {
		resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("int main(){}\u0000"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "sheetId, problemId and sourceCode must not contain NUL bytes", body["error"])
	}
	assert.Zero(t, ts.judge0.calls.Load())

	resp, body := ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("int main(){}"))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotContains(t, body, "warning")

	resp, body = ts.do(t, http.MethodPost, "/api/v1/submissions", ts.userToken, submitBody("int main(){ return 0; }"))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body["error"].(string), "Please wait "), body["error"])
}
