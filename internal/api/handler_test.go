package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidhogg/loreweaver/internal/embedding"
	"github.com/nidhogg/loreweaver/internal/provider"
	"github.com/nidhogg/loreweaver/internal/retrieval"
	"github.com/nidhogg/loreweaver/internal/session"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	reply string
	err   error
}

func (g *fakeGenerator) Chat(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &provider.ChatResponse{Content: g.reply}, nil
}

// newTestHandler creates a Handler wired with lightweight in-memory deps.
func newTestHandler(t *testing.T, gen session.Generator) (*Handler, http.Handler) {
	t.Helper()
	logger := zap.NewNop()

	cfg := session.DefaultConfig()
	cfg.ContextEnabled = false
	m := session.NewManager(cfg, embedding.NewHashProvider(16),
		retrieval.DefaultBonusTable(), gen, nil, nil, logger)

	h := NewHandler(m, logger)
	return h, h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t, &fakeGenerator{reply: "ok"})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["service"] != "loreweaver" {
		t.Errorf("expected service loreweaver, got %q", body["service"])
	}
}

func TestChatCreatesSession(t *testing.T) {
	_, router := newTestHandler(t, &fakeGenerator{reply: "You wake in a cold cell."})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/chat", map[string]string{"message": "look around"})
	if resp.StatusCode != 200 {
		t.Fatalf("chat: expected 200, got %d", resp.StatusCode)
	}
	var body chatResponse
	decodeJSON(t, resp, &body)
	if body.SessionID == "" {
		t.Fatal("expected generated session_id")
	}
	if body.Reply != "You wake in a cold cell." {
		t.Errorf("reply = %q", body.Reply)
	}

	// Second turn on the same session reuses it.
	resp = postJSON(t, ts, "/api/chat", map[string]string{
		"session_id": body.SessionID, "message": "stand up",
	})
	var second chatResponse
	decodeJSON(t, resp, &second)
	if second.SessionID != body.SessionID {
		t.Errorf("session_id changed: %q -> %q", body.SessionID, second.SessionID)
	}
}

func TestChatValidation(t *testing.T) {
	_, router := newTestHandler(t, &fakeGenerator{reply: "ok"})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/chat", map[string]string{"message": "   "})
	if resp.StatusCode != 400 {
		t.Errorf("blank message: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("malformed json: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatGenerationFailure(t *testing.T) {
	_, router := newTestHandler(t, &fakeGenerator{err: errors.New("upstream down")})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/chat", map[string]string{"message": "hello"})
	if resp.StatusCode != 502 {
		t.Errorf("expected 502 on generation failure, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionInspection(t *testing.T) {
	_, router := newTestHandler(t, &fakeGenerator{reply: "You see a market square."})
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/chat", map[string]string{
		"session_id": "game-1", "message": "enter the city",
	})
	resp.Body.Close()

	// Sessions list
	resp = getJSON(t, ts, "/api/sessions")
	var list map[string][]string
	decodeJSON(t, resp, &list)
	if len(list["sessions"]) != 1 || list["sessions"][0] != "game-1" {
		t.Errorf("sessions = %v", list["sessions"])
	}

	// History includes anchor + user + assistant
	resp = getJSON(t, ts, "/api/sessions/game-1/history")
	if resp.StatusCode != 200 {
		t.Fatalf("history: expected 200, got %d", resp.StatusCode)
	}
	var hist struct {
		BudgetTokens int `json:"budget_tokens"`
		Messages     []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Active  bool   `json:"active"`
		} `json:"messages"`
	}
	decodeJSON(t, resp, &hist)
	if len(hist.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(hist.Messages))
	}
	if hist.Messages[0].Role != "system" || !hist.Messages[0].Active {
		t.Errorf("anchor = %+v", hist.Messages[0])
	}

	// Memories endpoint works even when empty
	resp = getJSON(t, ts, "/api/sessions/game-1/memories")
	var mem map[string]interface{}
	decodeJSON(t, resp, &mem)
	if mem["count"].(float64) != 0 {
		t.Errorf("expected 0 memories, got %v", mem["count"])
	}

	// NPC rebuild is safe on an empty log
	resp = postJSON(t, ts, "/api/sessions/game-1/npcs/rebuild", nil)
	if resp.StatusCode != 200 {
		t.Errorf("rebuild: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionNotFound(t *testing.T) {
	_, router := newTestHandler(t, &fakeGenerator{reply: "ok"})
	ts := httptest.NewServer(router)
	defer ts.Close()

	for _, path := range []string{
		"/api/sessions/nope/history",
		"/api/sessions/nope/memories",
		"/api/sessions/nope/npcs",
	} {
		resp := getJSON(t, ts, path)
		if resp.StatusCode != 404 {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
