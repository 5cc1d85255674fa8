package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/db"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/submission"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	if err := db.Migrate(context.Background(), conn, db.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	handler := NewRouter(Deps{
		DB:          conn,
		Driver:      "sqlite",
		Auth:        auth.NewService("test-secret", time.Hour),
		Exams:       exam.NewSQLStore(conn, "sqlite"),
		Submissions: submission.NewSQLStore(conn, "sqlite", 24*time.Hour),
		BcryptCost:  bcrypt.MinCost,
		CORSOrigins: []string{"*"},
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// call performs one JSON request and decodes the body into a generic map.
func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := callRaw(t, srv, method, path, token, body)
	if len(raw) == 0 {
		return status, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		// some endpoints return arrays; callers needing those use callRaw
		return status, nil
	}
	return status, out
}

func callRaw(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func signup(t *testing.T, srv *httptest.Server, name, role string) (token string, id int64) {
	t.Helper()
	status, out := call(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name":     name,
		"email":    name + "@test.local",
		"password": "hunter22",
		"role":     role,
	})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: status %d (%v)", name, status, out)
	}
	user := out["user"].(map[string]any)
	return out["token"].(string), int64(user["id"].(float64))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	status, out := call(t, srv, http.MethodGet, "/api/health", "", nil)
	if status != http.StatusOK || out["ok"] != true {
		t.Fatalf("health = %d %v", status, out)
	}
}

func TestSignupAndLogin(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signup(t, srv, "alice", "student")
	if token == "" {
		t.Fatal("no token issued")
	}

	status, out := call(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "alice2", "email": "alice@test.local", "password": "hunter22", "role": "student",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate email = %d %v", status, out)
	}

	status, _ = call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@test.local", "password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad password = %d", status)
	}

	status, out = call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "Alice@Test.Local", "password": "hunter22",
	})
	if status != http.StatusOK || out["token"] == "" {
		t.Fatalf("login = %d %v", status, out)
	}
}

func TestSignupRejectsUnknownRole(t *testing.T) {
	srv := newTestServer(t)
	status, _ := call(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "eve", "email": "eve@test.local", "password": "hunter22", "role": "superuser",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown role = %d", status)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	if status, _ := call(t, srv, http.MethodGet, "/api/exams", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("no token = %d", status)
	}
	if status, _ := call(t, srv, http.MethodGet, "/api/exams", "not-a-jwt", nil); status != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d", status)
	}
}

func createExam(t *testing.T, srv *httptest.Server, token string) int64 {
	t.Helper()
	status, out := call(t, srv, http.MethodPost, "/api/exams", token, map[string]any{
		"title": "Networks", "description": "final", "duration_minutes": 90,
	})
	if status != http.StatusCreated {
		t.Fatalf("create exam = %d %v", status, out)
	}
	return int64(out["id"].(float64))
}

func addQuestion(t *testing.T, srv *httptest.Server, token string, examID int64, correct string, marks, neg float64) int64 {
	t.Helper()
	status, raw := callRaw(t, srv, http.MethodPost, fmt.Sprintf("/api/exams/%d/questions", examID), token, map[string]any{
		"questions": []map[string]any{{
			"text": "pick " + correct, "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d",
			"correct_option": correct, "marks": marks, "negative_marks": neg,
		}},
	})
	if status != http.StatusCreated {
		t.Fatalf("add question = %d %s", status, raw)
	}
	var qs []map[string]any
	if err := json.Unmarshal(raw, &qs); err != nil || len(qs) != 1 {
		t.Fatalf("add question response: %s", raw)
	}
	return int64(qs[0]["id"].(float64))
}

func TestExamLifecycleAndRBAC(t *testing.T) {
	srv := newTestServer(t)
	instructor, _ := signup(t, srv, "inst", "instructor")
	rival, _ := signup(t, srv, "rival", "instructor")
	student, _ := signup(t, srv, "stu", "student")

	examID := createExam(t, srv, instructor)
	addQuestion(t, srv, instructor, examID, "B", 1, 0)

	// students cannot author
	if status, _ := call(t, srv, http.MethodPost, "/api/exams", student, map[string]any{
		"title": "x", "duration_minutes": 10,
	}); status != http.StatusForbidden {
		t.Fatalf("student create = %d", status)
	}

	// the attempt payload must not leak the answer key
	status, raw := callRaw(t, srv, http.MethodGet, fmt.Sprintf("/api/exams/%d/questions", examID), student, nil)
	if status != http.StatusOK {
		t.Fatalf("get questions = %d", status)
	}
	if bytes.Contains(raw, []byte(`"correct_option":"B"`)) {
		t.Fatalf("answer key leaked: %s", raw)
	}

	// another instructor cannot touch the exam
	if status, _ := call(t, srv, http.MethodPost, fmt.Sprintf("/api/exams/%d/questions", examID), rival, map[string]any{
		"questions": []map[string]any{{
			"text": "q", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_option": "A",
		}},
	}); status != http.StatusForbidden {
		t.Fatalf("rival add question = %d", status)
	}
	if status, _ := call(t, srv, http.MethodDelete, fmt.Sprintf("/api/exams/%d", examID), rival, nil); status != http.StatusForbidden {
		t.Fatalf("rival delete = %d", status)
	}

	// the owner can
	if status, _ := call(t, srv, http.MethodDelete, fmt.Sprintf("/api/exams/%d", examID), instructor, nil); status != http.StatusOK {
		t.Fatalf("owner delete = %d", status)
	}
	if status, _ := call(t, srv, http.MethodGet, fmt.Sprintf("/api/exams/%d/questions", examID), student, nil); status != http.StatusNotFound {
		t.Fatalf("deleted exam = %d", status)
	}
}

func TestSubmitResultsAndCooldown(t *testing.T) {
	srv := newTestServer(t)
	instructor, instID := signup(t, srv, "inst", "instructor")
	student, stuID := signup(t, srv, "stu", "student")
	other, _ := signup(t, srv, "other", "student")
	rival, _ := signup(t, srv, "rival", "instructor")

	examID := createExam(t, srv, instructor)
	q1 := addQuestion(t, srv, instructor, examID, "A", 1, 0)
	q2 := addQuestion(t, srv, instructor, examID, "B", 1, 0.25)

	submitPath := fmt.Sprintf("/api/submissions/%d/submit", examID)
	status, out := call(t, srv, http.MethodPost, submitPath, student, map[string]any{
		"answers": []map[string]any{
			{"question_id": q1, "chosen_option": "A"},
			{"question_id": q2, "chosen_option": "C"},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("submit = %d %v", status, out)
	}
	if out["score"].(float64) != 0.75 {
		t.Fatalf("score = %v, want 0.75", out["score"])
	}

	// an immediate retry hits the cooldown
	status, out = call(t, srv, http.MethodPost, submitPath, student, map[string]any{"answers": []map[string]any{}})
	if status != http.StatusTooManyRequests {
		t.Fatalf("resubmit = %d %v", status, out)
	}
	if out["retry_after_seconds"] == nil || !strings.Contains(out["message"].(string), "reattempt") {
		t.Fatalf("cooldown body = %v", out)
	}

	// missing answers array
	if status, _ := call(t, srv, http.MethodPost, submitPath, other, map[string]any{}); status != http.StatusBadRequest {
		t.Fatalf("nil answers = %d", status)
	}

	resultPath := fmt.Sprintf("/api/submissions/%d/results/%d", examID, stuID)
	status, out = call(t, srv, http.MethodGet, resultPath, student, nil)
	if status != http.StatusOK || out["score"].(float64) != 0.75 {
		t.Fatalf("own result = %d %v", status, out)
	}
	details := out["details"].([]any)
	if len(details) != 2 {
		t.Fatalf("details = %v", details)
	}

	// a student cannot read another student's result
	if status, _ := call(t, srv, http.MethodGet, resultPath, other, nil); status != http.StatusForbidden {
		t.Fatalf("other student result = %d", status)
	}
	// an instructor who does not own the exam cannot either
	if status, _ := call(t, srv, http.MethodGet, resultPath, rival, nil); status != http.StatusForbidden {
		t.Fatalf("rival result = %d", status)
	}
	// the owner can
	if status, _ := call(t, srv, http.MethodGet, resultPath, instructor, nil); status != http.StatusOK {
		t.Fatalf("owner result = %d", status)
	}

	// leaderboard is visible to students
	status, raw := callRaw(t, srv, http.MethodGet, fmt.Sprintf("/api/exams/%d/leaderboard", examID), student, nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard = %d", status)
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil || len(rows) != 1 || rows[0]["name"] != "stu" {
		t.Fatalf("leaderboard body = %s", raw)
	}

	// no submission yet for this pair
	if status, _ := call(t, srv, http.MethodGet, fmt.Sprintf("/api/submissions/%d/results/%d", examID, instID), instructor, nil); status != http.StatusNotFound {
		t.Fatalf("missing result = %d", status)
	}
}

func TestAnalysisOwnership(t *testing.T) {
	srv := newTestServer(t)
	instructor, _ := signup(t, srv, "inst", "instructor")
	rival, _ := signup(t, srv, "rival", "instructor")
	student, _ := signup(t, srv, "stu", "student")

	examID := createExam(t, srv, instructor)
	q1 := addQuestion(t, srv, instructor, examID, "A", 10, 0)
	if status, _ := call(t, srv, http.MethodPost, fmt.Sprintf("/api/submissions/%d/submit", examID), student, map[string]any{
		"answers": []map[string]any{{"question_id": q1, "chosen_option": "A"}},
	}); status != http.StatusCreated {
		t.Fatalf("submit = %d", status)
	}

	analysisPath := fmt.Sprintf("/api/exams/%d/analysis", examID)
	if status, _ := call(t, srv, http.MethodGet, analysisPath, student, nil); status != http.StatusForbidden {
		t.Fatalf("student analysis = %d", status)
	}
	if status, _ := call(t, srv, http.MethodGet, analysisPath, rival, nil); status != http.StatusForbidden {
		t.Fatalf("rival analysis = %d", status)
	}

	status, out := call(t, srv, http.MethodGet, analysisPath, instructor, nil)
	if status != http.StatusOK {
		t.Fatalf("owner analysis = %d", status)
	}
	summary := out["summary"].(map[string]any)
	if summary["attempts"].(float64) != 1 || summary["avg_score"].(float64) != 10 {
		t.Fatalf("summary = %v", summary)
	}
	if len(out["perQuestion"].([]any)) != 1 {
		t.Fatalf("perQuestion = %v", out["perQuestion"])
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t)
	admin, adminID := signup(t, srv, "root", "admin")
	student, stuID := signup(t, srv, "stu", "student")

	if status, _ := call(t, srv, http.MethodGet, "/api/admin/users", student, nil); status != http.StatusForbidden {
		t.Fatalf("student admin access = %d", status)
	}

	status, raw := callRaw(t, srv, http.MethodGet, "/api/admin/users", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("list users = %d", status)
	}
	var users []map[string]any
	if err := json.Unmarshal(raw, &users); err != nil || len(users) != 2 {
		t.Fatalf("users = %s", raw)
	}

	// promote the student
	status, _ = call(t, srv, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", stuID), admin,
		map[string]string{"role": "instructor"})
	if status != http.StatusOK {
		t.Fatalf("change role = %d", status)
	}

	// an admin cannot demote itself
	status, _ = call(t, srv, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", adminID), admin,
		map[string]string{"role": "student"})
	if status != http.StatusBadRequest {
		t.Fatalf("self demote = %d", status)
	}

	status, out := call(t, srv, http.MethodGet, "/api/admin/stats", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("stats = %d", status)
	}
	userStats := out["users"].(map[string]any)
	if userStats["total"].(float64) != 2 || userStats["admins"].(float64) != 1 {
		t.Fatalf("user stats = %v", userStats)
	}

	// admins bypass exam ownership
	instToken, _ := signup(t, srv, "inst", "instructor")
	examID := createExam(t, srv, instToken)
	if status, _ := call(t, srv, http.MethodDelete, fmt.Sprintf("/api/exams/%d", examID), admin, nil); status != http.StatusOK {
		t.Fatalf("admin delete = %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signup(t, srv, "alice", "student")

	status, _ := call(t, srv, http.MethodPost, "/api/me/password", token,
		map[string]string{"old_password": "nope", "new_password": "newsecret"})
	if status != http.StatusForbidden {
		t.Fatalf("wrong old password = %d", status)
	}

	status, _ = call(t, srv, http.MethodPost, "/api/me/password", token,
		map[string]string{"old_password": "hunter22", "new_password": "newsecret"})
	if status != http.StatusNoContent {
		t.Fatalf("change password = %d", status)
	}

	if status, _ := call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@test.local", "password": "hunter22",
	}); status != http.StatusUnauthorized {
		t.Fatalf("old password still works = %d", status)
	}
	if status, _ := call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@test.local", "password": "newsecret",
	}); status != http.StatusOK {
		t.Fatalf("new password rejected = %d", status)
	}
}

func TestMyResultsAndUpcoming(t *testing.T) {
	srv := newTestServer(t)
	instructor, _ := signup(t, srv, "inst", "instructor")
	student, _ := signup(t, srv, "stu", "student")

	examID := createExam(t, srv, instructor)
	q1 := addQuestion(t, srv, instructor, examID, "A", 5, 0)
	if status, _ := call(t, srv, http.MethodPost, fmt.Sprintf("/api/submissions/%d/submit", examID), student, map[string]any{
		"answers": []map[string]any{{"question_id": q1, "chosen_option": "A"}},
	}); status != http.StatusCreated {
		t.Fatalf("submit = %d", status)
	}

	status, raw := callRaw(t, srv, http.MethodGet, "/api/me/results", student, nil)
	if status != http.StatusOK {
		t.Fatalf("my results = %d", status)
	}
	var results []map[string]any
	if err := json.Unmarshal(raw, &results); err != nil || len(results) != 1 || results[0]["score"].(float64) != 5 {
		t.Fatalf("results = %s", raw)
	}

	// schedule one exam in the future
	when := time.Now().Add(48 * time.Hour).Format("2006-01-02T15:04")
	status, out := call(t, srv, http.MethodPost, "/api/exams", instructor, map[string]any{
		"title": "Scheduled", "duration_minutes": 60, "scheduled_at": when,
	})
	if status != http.StatusCreated {
		t.Fatalf("create scheduled = %d %v", status, out)
	}

	status, raw = callRaw(t, srv, http.MethodGet, "/api/me/upcoming-exams", student, nil)
	if status != http.StatusOK {
		t.Fatalf("upcoming = %d", status)
	}
	var upcoming []map[string]any
	if err := json.Unmarshal(raw, &upcoming); err != nil || len(upcoming) != 1 || upcoming[0]["title"] != "Scheduled" {
		t.Fatalf("upcoming = %s", raw)
	}
}
