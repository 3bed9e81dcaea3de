package live

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/hotseat-chess/internal/service/board"
	"github.com/park285/hotseat-chess/pkg/chessdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	load := func(ctx context.Context, id string) (*chessdto.SessionState, error) {
		switch strings.ToLower(id) {
		case "s1":
			return &chessdto.SessionState{SessionID: "s1", PlyCount: 0}, nil
		case "broken":
			return nil, errors.New("redis get: dial tcp 10.0.0.7:6379: connection refused")
		default:
			return nil, board.ErrSessionNotFound
		}
	}
	srv := httptest.NewServer(hub.Handler(load))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestFeedSendsInitialAndPublishedStates(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newTestServer(t, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(srv, "/ws/s1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.CloseNow()

	var first chessdto.SessionState
	if err := wsjson.Read(ctx, c, &first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.SessionID != "s1" || first.PlyCount != 0 {
		t.Fatalf("unexpected initial state %+v", first)
	}
	if n := hub.Watchers("s1"); n != 1 {
		t.Fatalf("expected 1 watcher, got %d", n)
	}

	if err := hub.Publish("other", &chessdto.SessionState{SessionID: "other"}); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	if err := hub.Publish("s1", &chessdto.SessionState{SessionID: "s1", PlyCount: 1, MovesSAN: []string{"e4"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var next chessdto.SessionState
	if err := wsjson.Read(ctx, c, &next); err != nil {
		t.Fatalf("read published: %v", err)
	}
	if next.SessionID != "s1" || next.PlyCount != 1 || len(next.MovesSAN) != 1 {
		t.Fatalf("unexpected published state %+v", next)
	}

	c.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for hub.Watchers("s1") != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := hub.Watchers("s1"); n != 0 {
		t.Fatalf("watcher not removed after close, got %d", n)
	}
}

func TestFeedUnknownSession(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newTestServer(t, hub)

	resp, err := http.Get(srv.URL + "/ws/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if n := hub.Watchers("missing"); n != 0 {
		t.Fatalf("failed load should not leave a watcher")
	}
}

func TestPublishKeepsNewestForSlowWatcher(t *testing.T) {
	hub := NewHub(nil, nil)
	ch, cancel := hub.subscribe("s1")
	defer cancel()

	for i := 0; i < watcherBuffer+3; i++ {
		if err := hub.Publish("s1", &chessdto.SessionState{SessionID: "s1", PlyCount: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	var last []byte
	for len(ch) > 0 {
		last = <-ch
	}
	if !strings.Contains(string(last), `"ply_count":6`) {
		t.Fatalf("newest state lost, last queued %s", last)
	}
}

func TestFeedUsesCanonicalSessionID(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newTestServer(t, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(srv, "/ws/S1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.CloseNow()

	var first chessdto.SessionState
	if err := wsjson.Read(ctx, c, &first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if n := hub.Watchers("s1"); n != 1 {
		t.Fatalf("expected the watcher under the canonical id, got %d", n)
	}
	if n := hub.Watchers("S1"); n != 0 {
		t.Fatalf("raw path id must not be subscribed, got %d", n)
	}

	if err := hub.Publish("s1", &chessdto.SessionState{SessionID: "s1", PlyCount: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var next chessdto.SessionState
	if err := wsjson.Read(ctx, c, &next); err != nil {
		t.Fatalf("read published: %v", err)
	}
	if next.PlyCount != 1 {
		t.Fatalf("unexpected published state %+v", next)
	}
}

func TestFeedHidesInternalErrors(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := newTestServer(t, hub)

	resp, err := http.Get(srv.URL + "/ws/broken")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "redis") || strings.Contains(string(body), "10.0.0.7") {
		t.Fatalf("internal error leaked: %q", body)
	}
}
