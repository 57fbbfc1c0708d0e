package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-attempt-service/internal/domain"
)

func TestLeaderboardStreamSendsSnapshotThenUpdates(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice")

	u := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/ws/leaderboard?categoryId=go&difficulty=easy&numQuestions=2&access_token=" + alice
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the snapshot first.
	msgType, _ := readNext(t, conn)
	if msgType != "snapshot" {
		t.Fatalf("expected snapshot, got %s", msgType)
	}

	attemptID, qids := f.startAttempt(t, alice, 2)
	answers := submitRequest{Answers: []domain.Answer{{QID: qids[0], SelectedIndex: intPtr(1)}}}
	if status, raw := f.do(t, http.MethodPost, "/api/attempts/"+attemptID+"/submit", alice, answers); status != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", status, raw)
	}

	msgType, payload := readNext(t, conn)
	if msgType != "stats" {
		t.Fatalf("expected stats, got %s", msgType)
	}
	stats, ok := payload["stats"].(map[string]any)
	if !ok {
		t.Fatalf("expected stats payload, got %+v", payload)
	}
	if stats["participantsCount"] != float64(1) || stats["topScore"] != float64(1) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLeaderboardStreamRejectsPartialKey(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice")
	status, raw := f.do(t, http.MethodGet, "/ws/leaderboard?categoryId=go", alice, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", status, raw)
	}
	if f.hub.Subscribers(domain.GroupKey{CategoryID: "go"}) != 0 {
		t.Fatalf("rejected stream must not leave a subscription behind")
	}
}

func TestLeaderboardStreamSnapshotUsesPaging(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice")

	u := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/ws/leaderboard?categoryId=go&difficulty=easy&numQuestions=2&page=3&limit=5&access_token=" + alice
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msgType, payload := readNext(t, conn)
	if msgType != "snapshot" {
		t.Fatalf("expected snapshot, got %s", msgType)
	}
	if payload["page"] != float64(3) || payload["limit"] != float64(5) {
		t.Fatalf("expected page 3 limit 5 in snapshot, got %+v", payload)
	}
}

func TestLeaderboardStreamRejectsBadPaging(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice")
	status, raw := f.do(t, http.MethodGet, "/ws/leaderboard?categoryId=go&difficulty=easy&numQuestions=2&limit=abc", alice, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", status, raw)
	}
}

func TestLeaderboardStreamRequiresToken(t *testing.T) {
	f := newFixture(t)
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/leaderboard?categoryId=go&difficulty=easy&numQuestions=2"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %+v", resp)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}
