package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/migrate"
)

const testJWTSecret = "test-secret"

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
	handler, err := New(Config{
		DB:        conn,
		AppConfig: config.Default(),
		BasePath:  "/v1",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
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

func actorHeader(id int64) map[string]string {
	return map[string]string{"X-Actor-Id": fmt.Sprint(id)}
}

func mintJWT(t *testing.T, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// seedUser creates a user through the API and returns its id.
func seedUser(t *testing.T, srv *testServer, name, email string) int64 {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/users", map[string]any{
		"name": name, "email": email,
	}, actorHeader(1))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user %s: %d %s", name, res.StatusCode, string(data))
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	return u.ID
}

func seedProject(t *testing.T, srv *testServer, creatorID int64, name string) int64 {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"name": name,
	}, actorHeader(creatorID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return p.ID
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}

func TestMissingCredentialsRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", res.StatusCode)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestJWTAuthenticatesCaller(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	alice := seedUser(t, srv, "Alice Martin", "alice@example.com")
	token := mintJWT(t, alice)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"name": "Apollo",
	}, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project with jwt: %d %s", res.StatusCode, string(data))
	}
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if p.CreatorID != alice {
		t.Fatalf("creator = %d, want %d", p.CreatorID, alice)
	}

	badRes, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if badRes.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token accepted: %d", badRes.StatusCode)
	}
}

func TestProjectMembership(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	alice := seedUser(t, srv, "Alice Martin", "alice@example.com")
	bob := seedUser(t, srv, "Bob Stone", "bob@example.com")
	carol := seedUser(t, srv, "Carol Reyes", "carol@example.com")
	pid := seedProject(t, srv, alice, "Apollo")
	base := fmt.Sprintf("%s/v1/projects/%d", srv.URL, pid)

	// Only members can see the project.
	res, _ := doJSON(t, client, http.MethodGet, base, nil, actorHeader(bob))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("non-member read: %d, want 403", res.StatusCode)
	}

	res, data := doJSON(t, client, http.MethodPost, base+"/members", map[string]any{"user_id": bob}, actorHeader(alice))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add member: %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, base, nil, actorHeader(bob))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("member read after add: %d", res.StatusCode)
	}

	// Only the creator manages membership or project fields.
	res, _ = doJSON(t, client, http.MethodPost, base+"/members", map[string]any{"user_id": carol}, actorHeader(bob))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("member managed membership: %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPatch, base, map[string]any{"name": "Apollo 2"}, actorHeader(bob))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("member updated project: %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPatch, base, map[string]any{"methodology": "scrum"}, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("creator update: %d %s", res.StatusCode, string(data))
	}
	var updated domain.Project
	_ = json.Unmarshal(data, &updated)
	if updated.Methodology != domain.MethodologyScrum {
		t.Fatalf("methodology = %s", updated.Methodology)
	}
}

func TestTaskLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	alice := seedUser(t, srv, "Alice Martin", "alice@example.com")
	pid := seedProject(t, srv, alice, "Apollo")
	base := fmt.Sprintf("%s/v1/projects/%d/tasks", srv.URL, pid)

	res, data := doJSON(t, client, http.MethodPost, base, map[string]any{
		"title": "Fix login", "priority": "high",
	}, actorHeader(alice))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var created domain.Task
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.Status != domain.StatusTodo || created.Priority != domain.PriorityHigh {
		t.Fatalf("defaults: %+v", created)
	}
	taskURL := fmt.Sprintf("%s/%d", base, created.ID)

	res, _ = doJSON(t, client, http.MethodPatch, taskURL, map[string]any{"status": "blocked"}, actorHeader(alice))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status accepted: %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPatch, taskURL, map[string]any{"status": "inprogress"}, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch task: %d %s", res.StatusCode, string(data))
	}
	var patched domain.Task
	_ = json.Unmarshal(data, &patched)
	if patched.Status != domain.StatusInProgress {
		t.Fatalf("status = %s", patched.Status)
	}

	// Assignee must be a member of the project.
	outsider := seedUser(t, srv, "Carol Reyes", "carol@example.com")
	res, _ = doJSON(t, client, http.MethodPatch, taskURL, map[string]any{"assignee_id": outsider}, actorHeader(alice))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("outsider assignee accepted: %d", res.StatusCode)
	}

	res, _ = doJSON(t, client, http.MethodDelete, taskURL, nil, actorHeader(alice))
	if res.StatusCode >= 300 {
		t.Fatalf("delete task: %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, taskURL, nil, actorHeader(alice))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted task still readable: %d", res.StatusCode)
	}
}

func TestProjectStatusUsesPhaseLabels(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	alice := seedUser(t, srv, "Alice Martin", "alice@example.com")
	pid := seedProject(t, srv, alice, "Apollo")
	base := fmt.Sprintf("%s/v1/projects/%d", srv.URL, pid)

	for _, status := range []string{"todo", "todo", "done"} {
		res, data := doJSON(t, client, http.MethodPost, base+"/tasks", map[string]any{
			"title": "T " + status, "status": status,
		}, actorHeader(alice))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("seed task: %d %s", res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodGet, base+"/status", nil, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", res.StatusCode, string(data))
	}
	var sr StatusResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if sr.TaskCounts["To Do"] != 2 || sr.TaskCounts["Done"] != 1 {
		t.Fatalf("counts = %v", sr.TaskCounts)
	}
}

func TestAssistantConfirmAndExecute(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	alice := seedUser(t, srv, "Alice Martin", "alice@example.com")
	pid := seedProject(t, srv, alice, "Apollo")
	base := fmt.Sprintf("%s/v1/projects/%d", srv.URL, pid)

	res, data := doJSON(t, client, http.MethodPost, base+"/assistant/message", map[string]any{
		"session_id": "s1",
		"message":    `create a task called "Ship beta" with high priority`,
	}, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assistant message: %d %s", res.StatusCode, string(data))
	}
	var reply struct {
		Type                 string          `json:"type"`
		Message              string          `json:"message"`
		CommandData          json.RawMessage `json:"command_data"`
		RequiresConfirmation bool            `json:"requires_confirmation"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if reply.Type != "command" || !reply.RequiresConfirmation || len(reply.CommandData) == 0 {
		t.Fatalf("reply = %+v (%s)", reply, string(data))
	}

	// Nothing created before the confirmation round trip.
	res, data = doJSON(t, client, http.MethodGet, base+"/tasks", nil, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks: %d %s", res.StatusCode, string(data))
	}
	var tasks []domain.Task
	_ = json.Unmarshal(data, &tasks)
	if len(tasks) != 0 {
		t.Fatalf("task created without confirmation: %+v", tasks)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/assistant/execute", map[string]any{
		"session_id":   "s1",
		"command_data": json.RawMessage(reply.CommandData),
	}, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("execute: %d %s", res.StatusCode, string(data))
	}
	var exec AssistantExecuteResponse
	_ = json.Unmarshal(data, &exec)
	if !strings.Contains(exec.Message, "Ship beta") {
		t.Fatalf("execution message %q", exec.Message)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/tasks", nil, actorHeader(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks: %d %s", res.StatusCode, string(data))
	}
	tasks = nil
	_ = json.Unmarshal(data, &tasks)
	if len(tasks) != 1 || tasks[0].Title != "Ship beta" || tasks[0].Priority != domain.PriorityHigh {
		t.Fatalf("tasks after execute: %+v", tasks)
	}

	res, _ = doJSON(t, client, http.MethodPost, base+"/assistant/execute", map[string]any{
		"command_data": map[string]any{"type": "task_delete", "selector": 99},
	}, actorHeader(alice))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing target: %d, want 404", res.StatusCode)
	}
}
