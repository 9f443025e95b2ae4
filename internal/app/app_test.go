package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/ctxutil"
	"github.com/Spok95/group-grader/internal/models"
	"github.com/Spok95/group-grader/internal/service"
	"github.com/Spok95/group-grader/internal/testutil/testdb"
)

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) (*client, *Auth) {
	t.Helper()
	h := testdb.SQLite(t)
	svc := service.New(h.Store, zap.NewNop(), service.Options{})
	auth := NewAuth("test-secret")
	api := NewAPI(svc, zap.NewNop(), APIConfig{Auth: auth, Location: time.UTC, TeamSize: 2})
	srv := httptest.NewServer(api.Router(h.DB, []string{"*"}))
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}, auth
}

func token(t *testing.T, a *Auth, id int64, role models.Role) string {
	t.Helper()
	tok, err := a.Issue(ctxutil.Identity{UserID: id, Role: role}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (c *client) do(method, path, tok string, body any) (int, []byte, http.Header) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	if err != nil {
		c.t.Fatal(err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

func (c *client) mustJSON(method, path, tok string, body any, want int, v any) {
	c.t.Helper()
	code, out, _ := c.do(method, path, tok, body)
	if code != want {
		c.t.Fatalf("%s %s: status %d, want %d: %s", method, path, code, want, out)
	}
	if v != nil {
		if err := json.Unmarshal(out, v); err != nil {
			c.t.Fatalf("%s %s: decode: %v (%s)", method, path, err, out)
		}
	}
}

func expectProblem(t *testing.T, code int, out []byte, wantStatus int, wantCode string) {
	t.Helper()
	var p problem
	_ = json.Unmarshal(out, &p)
	if code != wantStatus || p.Code != wantCode {
		t.Fatalf("status %d code %q, want %d %q (%s)", code, p.Code, wantStatus, wantCode, out)
	}
}

func TestAuthGuards(t *testing.T) {
	c, auth := newTestServer(t)

	code, out, _ := c.do("GET", "/api/admin/groups", "", nil)
	expectProblem(t, code, out, http.StatusUnauthorized, "unauthorized")

	code, out, _ = c.do("GET", "/api/admin/groups", "garbage", nil)
	expectProblem(t, code, out, http.StatusUnauthorized, "unauthorized")

	other := NewAuth("other-secret")
	code, out, _ = c.do("GET", "/api/admin/groups", token(t, other, 1, models.Admin), nil)
	expectProblem(t, code, out, http.StatusUnauthorized, "unauthorized")

	code, out, _ = c.do("GET", "/api/admin/groups", token(t, auth, 5, models.Student), nil)
	expectProblem(t, code, out, http.StatusForbidden, "forbidden")

	c.mustJSON("GET", "/api/admin/groups", token(t, auth, 1, models.Admin), nil, http.StatusOK, nil)
}

func TestRequestIDAndHealth(t *testing.T) {
	c, _ := newTestServer(t)
	code, out, hdr := c.do("GET", "/healthz", "", nil)
	if code != http.StatusOK || string(out) != "ok" {
		t.Fatalf("healthz: %d %s", code, out)
	}
	if hdr.Get(requestIDHeader) == "" {
		t.Fatal("request id header missing")
	}
	code, _, _ = c.do("GET", "/metrics", "", nil)
	if code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}
}

func TestErrorMapping(t *testing.T) {
	c, auth := newTestServer(t)
	admin := token(t, auth, 1, models.Admin)

	code, out, _ := c.do("POST", "/api/admin/criteria", admin, map[string]any{"name": "Качество", "weight": 150})
	expectProblem(t, code, out, http.StatusBadRequest, "invalid_input")

	code, out, _ = c.do("GET", "/api/admin/teams/999", admin, nil)
	expectProblem(t, code, out, http.StatusNotFound, "not_found")

	c.mustJSON("POST", "/api/admin/criteria", admin, map[string]any{"name": "Качество", "weight": 70}, http.StatusCreated, nil)
	code, out, _ = c.do("POST", "/api/admin/criteria", admin, map[string]any{"name": "Сроки", "weight": 40})
	expectProblem(t, code, out, http.StatusConflict, "weight_budget_exceeded")

	code, out, _ = c.do("POST", "/api/admin/groups", admin, map[string]any{"name": "G", "unknown": 1})
	expectProblem(t, code, out, http.StatusBadRequest, "invalid_input")

	code, out, _ = c.do("GET", "/api/admin/groups/abc/students", admin, nil)
	expectProblem(t, code, out, http.StatusBadRequest, "invalid_input")
}

func TestEvaluationFlow(t *testing.T) {
	c, auth := newTestServer(t)
	admin := token(t, auth, 1, models.Admin)

	var g models.Group
	c.mustJSON("POST", "/api/admin/groups", admin, map[string]any{"name": "Group 1", "max_students": 10}, http.StatusCreated, &g)

	var students []models.User
	for i := 1; i <= 4; i++ {
		var u models.User
		c.mustJSON("POST", fmt.Sprintf("/api/admin/groups/%d/students", g.ID), admin,
			map[string]any{"name": fmt.Sprintf("Студент %d", i), "email": fmt.Sprintf("s%d@example.com", i)},
			http.StatusCreated, &u)
		students = append(students, u)
	}

	var crit models.Criterion
	c.mustJSON("POST", "/api/admin/criteria", admin, map[string]any{"name": "Качество", "weight": 100, "max_score": 10}, http.StatusCreated, &crit)

	var p models.Period
	now := time.Now().UTC()
	c.mustJSON("POST", "/api/admin/periods", admin, map[string]any{
		"name":       "Весна",
		"start_date": now.Add(-time.Hour),
		"end_date":   now.Add(24 * time.Hour),
		"groups":     []int64{g.ID},
	}, http.StatusCreated, &p)
	c.mustJSON("POST", fmt.Sprintf("/api/admin/periods/%d/activate", p.ID), admin, nil, http.StatusOK, &p)
	if p.Status != models.PeriodActive {
		t.Fatalf("status = %s", p.Status)
	}

	var teams []models.Team
	c.mustJSON("POST", fmt.Sprintf("/api/admin/groups/%d/redistribute", g.ID), admin, nil, http.StatusOK, &teams)
	if len(teams) != 2 {
		t.Fatalf("teams = %d, want 2 (размер по умолчанию 2)", len(teams))
	}

	me := students[0]
	var own, other models.Team
	for _, tm := range teams {
		if tm.HasMember(me.ID) {
			own = tm
		} else {
			other = tm
		}
	}
	student := token(t, auth, me.ID, models.Student)

	var pending pendingResponse
	c.mustJSON("GET", "/api/me/pending", student, nil, http.StatusOK, &pending)
	if pending.Period == nil || pending.Period.ID != p.ID || len(pending.Teams) != 1 || pending.Teams[0].ID != other.ID {
		t.Fatalf("pending = %+v", pending)
	}

	code, out, _ := c.do("POST", "/api/me/evaluations", student, map[string]any{
		"team_id": own.ID, "scores": map[string]float64{fmt.Sprint(crit.ID): 5},
	})
	expectProblem(t, code, out, http.StatusConflict, "self_evaluation_forbidden")

	code, out, _ = c.do("POST", "/api/me/evaluations", student, map[string]any{
		"team_id": other.ID, "scores": map[string]float64{fmt.Sprint(crit.ID): 11},
	})
	expectProblem(t, code, out, http.StatusBadRequest, "invalid_score")

	var ev models.Evaluation
	c.mustJSON("POST", "/api/me/evaluations", student, map[string]any{
		"team_id": other.ID, "scores": map[string]float64{fmt.Sprint(crit.ID): 8}, "comments": "хорошо",
	}, http.StatusCreated, &ev)
	if ev.TotalScore != 80 || ev.PeriodID != p.ID {
		t.Fatalf("evaluation = %+v", ev)
	}

	code, out, _ = c.do("POST", "/api/me/evaluations", student, map[string]any{
		"team_id": other.ID, "scores": map[string]float64{fmt.Sprint(crit.ID): 8},
	})
	expectProblem(t, code, out, http.StatusConflict, "duplicate_evaluation")

	c.mustJSON("GET", "/api/me/pending", student, nil, http.StatusOK, &pending)
	if len(pending.Teams) != 0 {
		t.Fatalf("pending after submit = %+v", pending.Teams)
	}

	var hist []models.TeamHistory
	c.mustJSON("GET", fmt.Sprintf("/api/me/history?period_id=%d", p.ID), student, nil, http.StatusOK, &hist)
	if len(hist) != 1 || hist[0].TeamID != own.ID {
		t.Fatalf("history = %+v", hist)
	}

	var rep service.PeriodReport
	c.mustJSON("GET", fmt.Sprintf("/api/admin/reports/%d", p.ID), admin, nil, http.StatusOK, &rep)
	if rep.Stats.TotalEvaluations != 1 || rep.Stats.AverageScore != 80 || len(rep.Groups) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if top := rep.Groups[0].Teams[0]; top.TeamID != other.ID || top.Rank != 1 {
		t.Fatalf("top = %+v", top)
	}

	code, out, hdr := c.do("GET", fmt.Sprintf("/api/admin/reports/%d/export.csv", p.ID), admin, nil)
	if code != http.StatusOK || !strings.HasPrefix(hdr.Get("Content-Type"), "text/csv") {
		t.Fatalf("csv: %d %s", code, hdr.Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], ",80.00,") {
		t.Fatalf("csv body:\n%s", out)
	}
	if !strings.Contains(hdr.Get("Content-Disposition"), "report-") {
		t.Fatalf("disposition = %q", hdr.Get("Content-Disposition"))
	}

	code, out, _ = c.do("GET", fmt.Sprintf("/api/admin/reports/%d/export.xlsx", p.ID), admin, nil)
	if code != http.StatusOK || !bytes.HasPrefix(out, []byte("PK")) {
		t.Fatalf("xlsx: %d, %d bytes", code, len(out))
	}

	code, out, _ = c.do("DELETE", fmt.Sprintf("/api/admin/periods/%d", p.ID), admin, nil)
	expectProblem(t, code, out, http.StatusConflict, "period_in_use")
}

func TestSubmitWithoutActivePeriod(t *testing.T) {
	c, auth := newTestServer(t)
	code, out, _ := c.do("POST", "/api/me/evaluations", token(t, auth, 3, models.Student),
		map[string]any{"team_id": 1, "scores": map[string]float64{"1": 5}})
	expectProblem(t, code, out, http.StatusConflict, "period_not_active")
}
