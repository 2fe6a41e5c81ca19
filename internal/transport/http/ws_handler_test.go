package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
	"quiz-duel-service/internal/metrics"
	"quiz-duel-service/internal/testkit"
)

type testServer struct {
	*httptest.Server
	service   *app.DuelService
	scheduler *testkit.Scheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hub := NewHub(nil)
	scheduler := testkit.NewScheduler()
	reg := prometheus.NewRegistry()
	service := app.NewDuelService(memory.NewRegistry(), testkit.FixedBank(), memory.NewRatingStore(), hub,
		app.WithScheduler(scheduler.AfterFunc),
		app.WithIdleTimeout(0),
		app.WithMetrics(metrics.NewCollector(reg)))
	router := NewRouter(service, NewWSHandler(service, hub, nil), metrics.Handler(reg))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{Server: server, service: service, scheduler: scheduler}
}

// runAdvance waits for the settle callback to be queued and runs it.
func (s *testServer) runAdvance(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(s.scheduler.Pending()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no advance scheduled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.scheduler.RunPending()
}

func (s *testServer) dial(t *testing.T, userID, name string) *websocket.Conn {
	t.Helper()
	u := "ws" + s.URL[len("http"):] + "/ws?userId=" + userID + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	var msg wireMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

// readUntil skips messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wireMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readNext(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message within 20 reads", typ)
	return wireMessage{}
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	var p noticePayload
	msg := readUntil(t, conn, "notice")
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	return p.Text
}

func readQuestion(t *testing.T, conn *websocket.Conn) questionPayload {
	t.Helper()
	var q questionPayload
	msg := readUntil(t, conn, "question")
	if err := json.Unmarshal(msg.Payload, &q); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	return q
}

func TestWebSocketDuelFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "u1", "Alice")
	bob := srv.dial(t, "u2", "Bob")

	send(t, alice, "start", nil)
	if got := readText(t, alice); got != welcomeText {
		t.Fatalf("expected welcome, got %q", got)
	}
	send(t, alice, "start", nil)
	if got := readText(t, alice); got != welcomeBackText {
		t.Fatalf("expected welcome back, got %q", got)
	}

	send(t, alice, "duel", nil)
	if got := readText(t, alice); got != waitingText {
		t.Fatalf("expected waiting notice, got %q", got)
	}
	send(t, alice, "duel", nil)
	if got := readText(t, alice); got != alreadyWaitingText {
		t.Fatalf("expected already waiting notice, got %q", got)
	}

	send(t, bob, "duel", nil)
	if got := readText(t, alice); got != "Duel started with @Bob!" {
		t.Fatalf("unexpected announcement to alice: %q", got)
	}
	if got := readText(t, bob); got != "Duel started with @Alice!" {
		t.Fatalf("unexpected announcement to bob: %q", got)
	}

	for round := 1; round <= app.DuelRounds; round++ {
		qa := readQuestion(t, alice)
		qb := readQuestion(t, bob)
		if qa.Number != round || qb.Number != round || qa.Prompt != qb.Prompt {
			t.Fatalf("round %d: mismatched questions %+v / %+v", round, qa, qb)
		}
		send(t, alice, "answer", answerPayload{Handle: qa.Handle, Option: "right"})
		if got := readText(t, alice); got != "Correct! You got the point." {
			t.Fatalf("round %d: unexpected answerer text %q", round, got)
		}
		if got := readText(t, bob); got != "Alice answered correctly." {
			t.Fatalf("round %d: unexpected opponent text %q", round, got)
		}
		readUntil(t, bob, "retract")
		srv.runAdvance(t)
	}

	summary := "Duel over! Alice wins with a score of 3 to 0."
	if got := readText(t, alice); got != summary {
		t.Fatalf("unexpected summary for alice: %q", got)
	}
	if got := readText(t, bob); got != summary {
		t.Fatalf("unexpected summary for bob: %q", got)
	}

	send(t, bob, "rating", nil)
	var rating ratingPayload
	if err := json.Unmarshal(readUntil(t, bob, "rating").Payload, &rating); err != nil {
		t.Fatalf("decode rating: %v", err)
	}
	if rating.Rating != 990 || rating.Title != "Novice" {
		t.Fatalf("unexpected rating %+v", rating)
	}

	send(t, alice, "leaderboard", nil)
	var board leaderboardPayload
	if err := json.Unmarshal(readUntil(t, alice, "leaderboard").Payload, &board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(board.Entries) != 2 || board.Entries[0].PlayerID != "u1" || board.Entries[0].Rating != 1010 {
		t.Fatalf("unexpected leaderboard %+v", board.Entries)
	}
	if board.Text != "🏆 Leaderboard 🏆\n\n1. @Alice - 1010\n2. @Bob - 990\n" {
		t.Fatalf("unexpected leaderboard text %q", board.Text)
	}
}

func TestWebSocketRejectsMissingUser(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebSocketUnregisteredRatingAndUnknownType(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t, "u9", "")

	send(t, conn, "rating", nil)
	if got := readText(t, conn); got != notRegisteredText {
		t.Fatalf("expected not registered notice, got %q", got)
	}
	send(t, conn, "answer", answerPayload{Handle: "h", Option: "x"})
	if got := readText(t, conn); got != noDuelText {
		t.Fatalf("expected no duel notice, got %q", got)
	}
	send(t, conn, "dance", nil)
	if msg := readNext(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for unknown type, got %s", msg.Type)
	}
}

func TestDisconnectWithdrawsFromQueue(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t, "u1", "Alice")
	send(t, conn, "duel", nil)
	if got := readText(t, conn); got != waitingText {
		t.Fatalf("expected waiting notice, got %q", got)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for len(srv.service.Waiting()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected queue to be empty after disconnect, got %v", srv.service.Waiting())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRESTEndpoints(t *testing.T) {
	srv := newTestServer(t)
	if _, _, err := srv.service.Register(t.Context(), "u1", "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/players/u1/rating")
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	var card domain.RatingCard
	_ = json.NewDecoder(resp.Body).Decode(&card)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || card.Rating != domain.DefaultRating || card.Title != "Novice" {
		t.Fatalf("unexpected rating response %d %+v", resp.StatusCode, card)
	}

	resp, err = http.Get(srv.URL + "/api/players/ghost/rating")
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown player, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	var entries []domain.LeaderboardEntry
	_ = json.NewDecoder(resp.Body).Decode(&entries)
	resp.Body.Close()
	if len(entries) != 1 || entries[0].Rank != 1 || entries[0].PlayerID != "u1" {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}

	if _, err := srv.service.RequestDuel(t.Context(), "u1", "Alice"); err != nil {
		t.Fatalf("request duel: %v", err)
	}
	resp, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	var status statusPayload
	_ = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if len(status.Waiting) != 1 || status.Waiting[0] != "u1" || status.ActiveDuels != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", resp.StatusCode)
	}
}
