package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/Ganeshg1313/askandsay-server/pkg/auth"
	"github.com/Ganeshg1313/askandsay-server/pkg/config"
	"github.com/Ganeshg1313/askandsay-server/pkg/storage"
)

type fakeDirectory struct {
	existing map[string]bool
	err      error
}

func (f *fakeDirectory) ProjectExists(projectID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[projectID], nil
}

type fakeVerifier struct {
	identities map[string]*auth.Claims
}

func (f *fakeVerifier) VerifyToken(token string) (*auth.Claims, error) {
	claims, ok := f.identities[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

func newTestGateway(responder *fakeResponder, projects *fakeDirectory, tokens *fakeVerifier) *Gateway {
	cfg := config.Default().Relay
	return NewGateway(cfg, projects, tokens, responder, newFakeArtifacts(), nil, time.Second)
}

func TestHandshakeRejectsInvalidProjectID(t *testing.T) {
	gw := newTestGateway(&fakeResponder{}, &fakeDirectory{}, &fakeVerifier{})
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleProjectSocket))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?projectId=not-a-real-id")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed projectId, got %d", resp.StatusCode)
	}
}

func TestHandshakeRejectsUnknownProject(t *testing.T) {
	gw := newTestGateway(&fakeResponder{}, &fakeDirectory{existing: map[string]bool{}}, &fakeVerifier{})
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleProjectSocket))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?projectId=" + storage.NewID())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown project, got %d", resp.StatusCode)
	}
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	projectID := storage.NewID()
	gw := newTestGateway(&fakeResponder{}, &fakeDirectory{existing: map[string]bool{projectID: true}}, &fakeVerifier{})
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleProjectSocket))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?projectId=" + projectID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	projectID := storage.NewID()
	gw := newTestGateway(&fakeResponder{}, &fakeDirectory{existing: map[string]bool{projectID: true}}, &fakeVerifier{identities: map[string]*auth.Claims{}})
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleProjectSocket))
	defer srv.Close()

	req, _ := http.NewRequest("GET", srv.URL+"?projectId="+projectID, nil)
	req.Header.Set("Authorization", "Bearer bogus")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestHandshakeStorageError(t *testing.T) {
	gw := newTestGateway(&fakeResponder{}, &fakeDirectory{err: errors.New("db down")}, &fakeVerifier{})
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleProjectSocket))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?projectId=" + storage.NewID())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 on storage error, got %d", resp.StatusCode)
	}
}

func TestProjectSocketEndToEnd(t *testing.T) {
	projectID := storage.NewID()
	projects := &fakeDirectory{existing: map[string]bool{projectID: true}}
	tokens := &fakeVerifier{identities: map[string]*auth.Claims{
		"alice-token": {UserID: "u1", Email: "alice@example.com"},
		"bob-token":   {UserID: "u2", Email: "bob@example.com"},
	}}
	gw := newTestGateway(&fakeResponder{}, projects, tokens)
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleProjectSocket))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?projectId=" + projectID

	dial := func(token string) *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.Dial(ctx, wsURL+"&token="+token, nil)
		if err != nil {
			t.Fatalf("dial as %s: %v", token, err)
		}
		return conn
	}

	aliceConn := dial("alice-token")
	defer aliceConn.Close(websocket.StatusNormalClosure, "")
	bobConn := dial("bob-token")
	defer bobConn.Close(websocket.StatusNormalClosure, "")

	frame, _ := json.Marshal(map[string]any{
		"type":    EventProjectMessage,
		"payload": map[string]string{"message": "hello from alice"},
	})
	if err := aliceConn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, data, err := bobConn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		Type    string  `json:"type"`
		Payload Message `json:"payload"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != EventProjectMessage {
		t.Errorf("expected %s event, got %q", EventProjectMessage, got.Type)
	}
	if got.Payload.Message != "hello from alice" {
		t.Errorf("expected relayed text, got %q", got.Payload.Message)
	}
	if got.Payload.Sender.ID != "u1" || got.Payload.Sender.Email != "alice@example.com" {
		t.Errorf("expected stamped sender, got %+v", got.Payload.Sender)
	}
}

func TestEvictedClientConnectionClosed(t *testing.T) {
	projectID := storage.NewID()
	projects := &fakeDirectory{existing: map[string]bool{projectID: true}}
	tokens := &fakeVerifier{identities: map[string]*auth.Claims{
		"bob-token": {UserID: "u2", Email: "bob@example.com"},
	}}
	gw := newTestGateway(&fakeResponder{}, projects, tokens)
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleProjectSocket))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?projectId=" + projectID + "&token=bob-token"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Evict the server-side client the way the hub drops slow consumers.
	var victim *client
	deadline := time.Now().Add(2 * time.Second)
	for victim == nil && time.Now().Before(deadline) {
		gw.hub.mu.RLock()
		if r, ok := gw.hub.rooms[projectID]; ok {
			r.mu.RLock()
			for c := range r.clients {
				victim = c
			}
			r.mu.RUnlock()
		}
		gw.hub.mu.RUnlock()
		time.Sleep(5 * time.Millisecond)
	}
	if victim == nil {
		t.Fatal("client never joined the room")
	}
	gw.hub.removeClient(projectID, victim)

	// Eviction must end the whole session, not just the write side.
	if _, _, err := conn.Read(ctx); err == nil {
		t.Fatal("expected connection closed after eviction")
	}
}

func TestExtractTokenPrefersHeader(t *testing.T) {
	gw := &Gateway{}

	req := httptest.NewRequest("GET", "/ws/project?token=query-token", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	if got := gw.extractToken(req); got != "header-token" {
		t.Errorf("expected header token, got %q", got)
	}

	req = httptest.NewRequest("GET", "/ws/project?token=query-token", nil)
	if got := gw.extractToken(req); got != "query-token" {
		t.Errorf("expected query token, got %q", got)
	}
}
