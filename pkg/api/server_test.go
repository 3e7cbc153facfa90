package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ganeshg1313/askandsay-server/pkg/ai"
	"github.com/Ganeshg1313/askandsay-server/pkg/auth"
	"github.com/Ganeshg1313/askandsay-server/pkg/config"
	"github.com/Ganeshg1313/askandsay-server/pkg/relay"
	"github.com/Ganeshg1313/askandsay-server/pkg/storage"
)

type stubResponder struct {
	resp *ai.StructuredResponse
	err  error
}

func (s *stubResponder) GenerateResponse(_ context.Context, _ string) (*ai.StructuredResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type testServer struct {
	srv    *httptest.Server
	store  *storage.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret-test-secret-test-secret"
	cfg.AI.Timeout = time.Second

	store, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Hour, store)
	responder := &stubResponder{resp: &ai.StructuredResponse{Text: "stub reply", Raw: `{"text":"stub reply"}`}}
	gateway := relay.NewGateway(cfg.Relay, store, tokens, responder, store, nil, time.Second)

	server := NewServer(cfg, store, tokens, responder, gateway, nil)
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: store, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (ts *testServer) register(t *testing.T, email, password string) (userID, token string) {
	t.Helper()
	resp, body := ts.do(t, "POST", "/api/users/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d (%v)", email, resp.StatusCode, body)
	}
	user := body["user"].(map[string]any)
	return user["_id"].(string), body["token"].(string)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	userID, token := ts.register(t, "alice@example.com", "password1")
	if userID == "" || token == "" {
		t.Fatal("expected user id and token from registration")
	}

	resp, body := ts.do(t, "POST", "/api/users/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d (%v)", resp.StatusCode, body)
	}
	if body["token"] == "" {
		t.Error("expected token from login")
	}
	user := body["user"].(map[string]any)
	if _, hasPassword := user["password"]; hasPassword {
		t.Error("login response must not expose a password field")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "dup@example.com", "password1")

	resp, _ := ts.do(t, "POST", "/api/users/register", "", map[string]string{
		"email":    "dup@example.com",
		"password": "password2",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, "POST", "/api/users/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "password1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid email, got %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, "POST", "/api/users/register", "", map[string]string{
		"email":    "ok@example.com",
		"password": "ab",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "bob@example.com", "password1")

	resp, _ := ts.do(t, "POST", "/api/users/login", "", map[string]string{
		"email":    "bob@example.com",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", resp.StatusCode)
	}
}

func TestProfileRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, "GET", "/api/users/profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	_, token := ts.register(t, "carol@example.com", "password1")
	resp, body := ts.do(t, "GET", "/api/users/profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: status %d (%v)", resp.StatusCode, body)
	}
	user := body["user"].(map[string]any)
	if user["email"] != "carol@example.com" {
		t.Errorf("expected profile email, got %v", user["email"])
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "dave@example.com", "password1")

	resp, _ := ts.do(t, "GET", "/api/users/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, "GET", "/api/users/profile", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestListUsersExcludesSelf(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "first@example.com", "password1")
	_, token := ts.register(t, "second@example.com", "password1")

	resp, body := ts.do(t, "GET", "/api/users/all", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: status %d", resp.StatusCode)
	}
	users := body["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("expected 1 other user, got %d", len(users))
	}
	if users[0].(map[string]any)["email"] != "first@example.com" {
		t.Errorf("expected the other user, got %v", users[0])
	}
}

func TestProjectLifecycle(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := ts.register(t, "alice@example.com", "password1")
	bobID, _ := ts.register(t, "bob@example.com", "password1")

	resp, created := ts.do(t, "POST", "/api/projects/create", aliceToken, map[string]string{
		"name": "My Project",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %d (%v)", resp.StatusCode, created)
	}
	projectID := created["_id"].(string)
	if created["name"] != "my project" {
		t.Errorf("expected lowercased name, got %v", created["name"])
	}

	resp, _ = ts.do(t, "POST", "/api/projects/create", aliceToken, map[string]string{
		"name": "my project",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", resp.StatusCode)
	}

	resp, listed := ts.do(t, "GET", "/api/projects/all", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list projects: status %d", resp.StatusCode)
	}
	if projects := listed["projects"].([]any); len(projects) != 1 {
		t.Errorf("expected 1 project, got %d", len(projects))
	}

	resp, added := ts.do(t, "PUT", "/api/projects/add-user", aliceToken, map[string]any{
		"projectId": projectID,
		"users":     []string{bobID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add user: status %d (%v)", resp.StatusCode, added)
	}
	members := added["project"].(map[string]any)["users"].([]any)
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}

	resp, got := ts.do(t, "GET", "/api/projects/get-project/"+projectID, aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get project: status %d (%v)", resp.StatusCode, got)
	}

	resp, _ = ts.do(t, "PUT", "/api/projects/delete-project", aliceToken, map[string]string{
		"projectId": projectID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete project: status %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, "GET", "/api/projects/get-project/"+projectID, aliceToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestAddUserRequiresMembership(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := ts.register(t, "alice@example.com", "password1")
	_, eveToken := ts.register(t, "eve@example.com", "password1")
	targetID, _ := ts.register(t, "target@example.com", "password1")

	_, created := ts.do(t, "POST", "/api/projects/create", aliceToken, map[string]string{"name": "closed"})
	projectID := created["_id"].(string)

	resp, _ := ts.do(t, "PUT", "/api/projects/add-user", eveToken, map[string]any{
		"projectId": projectID,
		"users":     []string{targetID},
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-member, got %d", resp.StatusCode)
	}
}

func TestFileTreeEndpoints(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "alice@example.com", "password1")
	_, created := ts.do(t, "POST", "/api/projects/create", token, map[string]string{"name": "files"})
	projectID := created["_id"].(string)

	tree := map[string]any{"main.go": map[string]any{"file": map[string]string{"contents": "package main"}}}
	resp, _ := ts.do(t, "POST", "/api/files/create-file", token, map[string]any{
		"projectId": projectID,
		"fileTree":  tree,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create file tree: status %d", resp.StatusCode)
	}

	resp, got := ts.do(t, "POST", "/api/files/get-file", token, map[string]string{"projectId": projectID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get file tree: status %d", resp.StatusCode)
	}
	if got["fileTree"] == nil {
		t.Error("expected fileTree in response")
	}

	updated := map[string]any{"app.js": map[string]any{"file": map[string]string{"contents": "console.log(1)"}}}
	resp, _ = ts.do(t, "PUT", "/api/files/update-file", token, map[string]any{
		"projectId": projectID,
		"fileTree":  updated,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update file tree: status %d", resp.StatusCode)
	}

	resp, got = ts.do(t, "POST", "/api/files/get-file", token, map[string]string{"projectId": projectID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-get file tree: status %d", resp.StatusCode)
	}
	treeMap := got["fileTree"].(map[string]any)
	if _, ok := treeMap["app.js"]; !ok {
		t.Errorf("expected replaced tree, got %v", treeMap)
	}

	resp, _ = ts.do(t, "POST", "/api/files/delete-files", token, map[string]string{"projectId": projectID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete file tree: status %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, "POST", "/api/files/get-file", token, map[string]string{"projectId": projectID})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestNoteEndpoints(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "alice@example.com", "password1")
	_, created := ts.do(t, "POST", "/api/projects/create", token, map[string]string{"name": "notes"})
	projectID := created["_id"].(string)

	resp, _ := ts.do(t, "POST", "/api/notes/create-note", token, map[string]string{
		"projectId": projectID,
		"content":   "first",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create note: status %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, "POST", "/api/notes/create-note", token, map[string]string{
		"projectId": projectID,
		"content":   "second",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate note, got %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, "PUT", "/api/notes/update-note", token, map[string]string{
		"projectId": projectID,
		"content":   "updated",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update note: status %d", resp.StatusCode)
	}

	resp, body := ts.do(t, "POST", "/api/notes/get-note", token, map[string]string{"projectId": projectID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get note: status %d", resp.StatusCode)
	}
	note := body["note"].(map[string]any)
	if note["content"] != "updated" {
		t.Errorf("expected updated content, got %v", note["content"])
	}
}

func TestAIResultEndpoint(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "alice@example.com", "password1")

	resp, body := ts.do(t, "GET", "/api/ai/get-result?prompt=hello", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ai result: status %d (%v)", resp.StatusCode, body)
	}
	if body["result"] != `{"text":"stub reply"}` {
		t.Errorf("expected raw structured reply, got %v", body["result"])
	}

	resp, _ = ts.do(t, "GET", "/api/ai/get-result", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without prompt, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, "GET", "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("expected ok status, got %v", body["status"])
	}
}
