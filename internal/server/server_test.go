package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/config"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/db"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/engine"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/migrate"
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
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: "test-secret"}})
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

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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

func registerUser(t *testing.T, srv *testServer, name, email string) AuthResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/register", map[string]any{
		"name":     name,
		"email":    email,
		"password": "secret-pass",
	}, "")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, res.StatusCode, string(data))
	}
	var auth AuthResponse
	if err := json.Unmarshal(data, &auth); err != nil {
		t.Fatalf("unmarshal auth: %v", err)
	}
	return auth
}

func TestRegisterAndLogin(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	auth := registerUser(t, srv, "Ada", "ada@example.com")
	if auth.Token == "" || auth.User.Email != "ada@example.com" {
		t.Fatalf("unexpected auth response: %+v", auth)
	}

	dupRes, dupBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/register", map[string]any{
		"name": "Ada Again", "email": "ada@example.com", "password": "secret-pass",
	}, "")
	if dupRes.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d %s", dupRes.StatusCode, string(dupBody))
	}

	loginRes, loginBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email": "ada@example.com", "password": "secret-pass",
	}, "")
	if loginRes.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", loginRes.StatusCode, string(loginBody))
	}

	badRes, _ := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email": "ada@example.com", "password": "wrong",
	}, "")
	if badRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", badRes.StatusCode)
	}

	meRes, meBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/auth/me", nil, auth.Token)
	if meRes.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", meRes.StatusCode, string(meBody))
	}
	var me UserResponse
	_ = json.Unmarshal(meBody, &me)
	if me.ID != auth.User.ID {
		t.Fatalf("expected own profile, got %+v", me)
	}

	anonRes, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/auth/me", nil, "")
	if anonRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", anonRes.StatusCode)
	}
}

func TestAutomationAwardsBadgeOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := registerUser(t, srv, "Ada", "ada@example.com")

	projRes, projBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"title": "Launch",
	}, auth.Token)
	if projRes.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", projRes.StatusCode, string(projBody))
	}
	var project ProjectResponse
	_ = json.Unmarshal(projBody, &project)

	autoRes, autoBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/automations", map[string]any{
		"trigger": map[string]any{"type": "status_change", "condition": map[string]any{"status": "Done"}},
		"action":  map[string]any{"type": "add_badge", "value": map[string]any{"badge": "Finisher"}},
	}, auth.Token)
	if autoRes.StatusCode != http.StatusCreated {
		t.Fatalf("create automation: %d %s", autoRes.StatusCode, string(autoBody))
	}

	taskRes, taskBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/tasks", map[string]any{
		"title":       "Ship feature",
		"assignee_id": auth.User.ID,
	}, auth.Token)
	if taskRes.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", taskRes.StatusCode, string(taskBody))
	}
	var task TaskResponse
	_ = json.Unmarshal(taskBody, &task)
	if task.Status != "To Do" {
		t.Fatalf("expected first column, got %q", task.Status)
	}

	doneRes, doneBody := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"status": "Done",
	}, auth.Token)
	if doneRes.StatusCode != http.StatusOK {
		t.Fatalf("update task: %d %s", doneRes.StatusCode, string(doneBody))
	}
	var done TaskResponse
	_ = json.Unmarshal(doneBody, &done)
	if len(done.Badges) != 1 || done.Badges[0].Name != "Finisher" {
		t.Fatalf("expected Finisher badge on task, got %+v", done.Badges)
	}

	badgesRes, badgesBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/auth/badges", nil, auth.Token)
	if badgesRes.StatusCode != http.StatusOK {
		t.Fatalf("my badges: %d %s", badgesRes.StatusCode, string(badgesBody))
	}
	var badges []UserBadgeResponse
	_ = json.Unmarshal(badgesBody, &badges)
	if len(badges) != 1 || badges[0].Name != "Finisher" || badges[0].ProjectID != project.ID {
		t.Fatalf("expected Finisher user badge, got %+v", badges)
	}

	eventsRes, eventsBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?project_id="+project.ID, nil, auth.Token)
	if eventsRes.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", eventsRes.StatusCode, string(eventsBody))
	}
	var page paginatedEvents
	_ = json.Unmarshal(eventsBody, &page)
	if len(page.Items) == 0 {
		t.Fatalf("expected events for the project, got %s", string(eventsBody))
	}
}

func TestManualBadgeStacksOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := registerUser(t, srv, "Ada", "ada@example.com")

	_, projBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{"title": "Launch"}, auth.Token)
	var project ProjectResponse
	_ = json.Unmarshal(projBody, &project)
	_, taskBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/tasks", map[string]any{
		"title":       "Pile on",
		"assignee_id": auth.User.ID,
	}, auth.Token)
	var task TaskResponse
	_ = json.Unmarshal(taskBody, &task)

	for i := 0; i < 2; i++ {
		res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/badge", map[string]any{"name": "Hero"}, auth.Token)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("award %d: %d %s", i, res.StatusCode, string(body))
		}
	}

	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+task.ID, nil, auth.Token)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get task: %d %s", getRes.StatusCode, string(getBody))
	}
	var fetched TaskResponse
	_ = json.Unmarshal(getBody, &fetched)
	if len(fetched.Badges) != 2 {
		t.Fatalf("manual awards stack, expected 2 badges, got %+v", fetched.Badges)
	}
}

func TestProjectAccessControl(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	owner := registerUser(t, srv, "Ada", "ada@example.com")
	outsider := registerUser(t, srv, "Eve", "eve@example.com")

	_, projBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{"title": "Private"}, owner.Token)
	var project ProjectResponse
	_ = json.Unmarshal(projBody, &project)

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID, nil, outsider.Token)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d %s", res.StatusCode, string(body))
	}

	inviteRes, inviteBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/invite", map[string]any{
		"email": "eve@example.com",
	}, outsider.Token)
	if inviteRes.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner invite, got %d %s", inviteRes.StatusCode, string(inviteBody))
	}

	okRes, okBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/invite", map[string]any{
		"email": "eve@example.com",
	}, owner.Token)
	if okRes.StatusCode != http.StatusOK {
		t.Fatalf("invite: %d %s", okRes.StatusCode, string(okBody))
	}
	var updated ProjectResponse
	_ = json.Unmarshal(okBody, &updated)
	if len(updated.Members) != 2 {
		t.Fatalf("expected 2 members, got %+v", updated.Members)
	}

	memberRes, memberBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID, nil, outsider.Token)
	if memberRes.StatusCode != http.StatusOK {
		t.Fatalf("member read after invite: %d %s", memberRes.StatusCode, string(memberBody))
	}
}

func TestEventPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := registerUser(t, srv, "Ada", "ada@example.com")

	_, projBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{"title": "Busy"}, auth.Token)
	var project ProjectResponse
	_ = json.Unmarshal(projBody, &project)
	for i := 0; i < 5; i++ {
		doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/tasks", map[string]any{
			"title": fmt.Sprintf("task %d", i),
		}, auth.Token)
	}

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?project_id="+project.ID+"&limit=3", nil, auth.Token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(body))
	}
	var page paginatedEvents
	_ = json.Unmarshal(body, &page)
	if len(page.Items) != 3 || page.NextCursor == "" {
		t.Fatalf("expected a full page with a cursor, got %d items cursor %q", len(page.Items), page.NextCursor)
	}

	res2, body2 := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?project_id="+project.ID+"&limit=3&cursor="+page.NextCursor, nil, auth.Token)
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("events page 2: %d %s", res2.StatusCode, string(body2))
	}
	var page2 paginatedEvents
	_ = json.Unmarshal(body2, &page2)
	if len(page2.Items) == 0 {
		t.Fatalf("expected remaining events, got %s", string(body2))
	}
}
