package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("proj-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	if _, err := e.CreateProject(context.Background(), engine.ProjectCreateOptions{ID: "proj-1", Name: "Test Project", ActorID: "tester"}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func mustCreate(t *testing.T, client *http.Client, url string, body any, out any) {
	t.Helper()
	res, data := doJSON(t, client, http.MethodPost, url, body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create %s: %d %s", url, res.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}

func TestScheduleLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	var m domain.MacroStage
	mustCreate(t, client, srv.URL+"/v0/projects/proj-1/macrostages", map[string]any{"name": "Phase 1"}, &m)
	var s domain.Stage
	mustCreate(t, client, srv.URL+"/v0/macrostages/"+m.ID+"/stages", map[string]any{"name": "Build"}, &s)
	mustCreate(t, client, srv.URL+"/v0/stages/"+s.ID+"/tasks", map[string]any{
		"name": "implement", "start_date": "2024-06-01", "end_date": "2024-06-30",
	}, nil)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/proj-1/tree", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tree: %d %s", res.StatusCode, string(data))
	}
	var tree engine.ProjectTree
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatalf("unmarshal tree: %v", err)
	}
	if tree.Project.StartDate == nil || *tree.Project.StartDate != "2024-06-01" {
		t.Fatalf("derived project start: %v", tree.Project.StartDate)
	}
	if tree.Status.Value != "in-progress" {
		t.Fatalf("derived status: %s", tree.Status.Value)
	}
	if len(tree.MacroStages) != 1 || len(tree.MacroStages[0].Stages) != 1 || len(tree.MacroStages[0].Stages[0].Tasks) != 1 {
		t.Fatalf("tree shape: %s", string(data))
	}
}

func TestTaskPatchReturnsShiftPlan(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/projects/proj-1", map[string]any{
		"auto_shift_tasks": true,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("enable auto shift: %d %s", res.StatusCode, string(data))
	}

	var m domain.MacroStage
	mustCreate(t, client, srv.URL+"/v0/projects/proj-1/macrostages", map[string]any{"name": "Phase 1"}, &m)
	var s domain.Stage
	mustCreate(t, client, srv.URL+"/v0/macrostages/"+m.ID+"/stages", map[string]any{"name": "Build"}, &s)
	var a, b domain.Task
	mustCreate(t, client, srv.URL+"/v0/stages/"+s.ID+"/tasks", map[string]any{
		"name": "a", "start_date": "2024-01-01", "end_date": "2024-01-10",
	}, &a)
	mustCreate(t, client, srv.URL+"/v0/stages/"+s.ID+"/tasks", map[string]any{
		"name": "b", "start_date": "2024-02-01", "end_date": "2024-02-05",
	}, &b)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+a.ID, map[string]any{
		"end_date": "2024-01-15",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch task: %d %s", res.StatusCode, string(data))
	}
	var patched UpdateTaskResponse
	if err := json.Unmarshal(data, &patched); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if patched.ShiftPlan == nil || patched.ShiftPlan.DeltaDays != 5 {
		t.Fatalf("expected shift plan preview: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+a.ID+"/shift/apply", map[string]any{
		"delta_days": patched.ShiftPlan.DeltaDays,
		"reference":  patched.ShiftPlan.Reference,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("apply shift: %d %s", res.StatusCode, string(data))
	}
	var applied ApplyShiftResponse
	if err := json.Unmarshal(data, &applied); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(applied.Shifted) != 1 || *applied.Shifted[0].StartDate != "2024-02-06" {
		t.Fatalf("shifted set: %s", string(data))
	}
}

func TestReorderRequiresOrderList(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	var m domain.MacroStage
	mustCreate(t, client, srv.URL+"/v0/projects/proj-1/macrostages", map[string]any{"name": "A"}, &m)
	var m2 domain.MacroStage
	mustCreate(t, client, srv.URL+"/v0/projects/proj-1/macrostages", map[string]any{"name": "B"}, &m2)

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v0/projects/proj-1/macrostages/order", map[string]any{}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing order: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/projects/proj-1/macrostages/order", map[string]any{"order": nil}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("null order: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/projects/proj-1/macrostages/order", map[string]any{
		"order": []string{m2.ID, m.ID},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reorder: %d %s", res.StatusCode, string(data))
	}
	var items []domain.MacroStage
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 2 || items[0].ID != m2.ID {
		t.Fatalf("new order: %s", string(data))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing project: %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("error code: %s", envelope.Error.Code)
	}

	var m domain.MacroStage
	mustCreate(t, client, srv.URL+"/v0/projects/proj-1/macrostages", map[string]any{"name": "Phase 1"}, &m)
	var s domain.Stage
	mustCreate(t, client, srv.URL+"/v0/macrostages/"+m.ID+"/stages", map[string]any{"name": "Build"}, &s)

	// inverted dates
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/stages/"+s.ID+"/tasks", map[string]any{
		"name": "bad", "start_date": "2024-06-10", "end_date": "2024-06-01",
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("inverted dates: %d %s", res.StatusCode, string(data))
	}

	// direct task on a stages-structured macrostage
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/macrostages/"+m.ID+"/tasks", map[string]any{
		"name": "direct",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("structure conflict: %d %s", res.StatusCode, string(data))
	}
}

func TestExportCSV(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	var m domain.MacroStage
	mustCreate(t, client, srv.URL+"/v0/projects/proj-1/macrostages", map[string]any{"name": "Phase 1"}, &m)
	var s domain.Stage
	mustCreate(t, client, srv.URL+"/v0/macrostages/"+m.ID+"/stages", map[string]any{"name": "Build"}, &s)
	mustCreate(t, client, srv.URL+"/v0/stages/"+s.ID+"/tasks", map[string]any{
		"name": "implement", "start_date": "2024-06-01", "end_date": "2024-06-30",
	}, nil)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/proj-1/export.csv", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export: %d %s", res.StatusCode, string(data))
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type: %s", ct)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	if lines[0] != "level,name,start_date,end_date,status,progress" {
		t.Fatalf("header: %s", lines[0])
	}
	// header, project, macrostage, stage, task
	if len(lines) != 5 {
		t.Fatalf("row count: %d\n%s", len(lines), string(data))
	}
	if !strings.HasPrefix(lines[4], "task,implement,2024-06-01,2024-06-30") {
		t.Fatalf("task row: %s", lines[4])
	}
}
