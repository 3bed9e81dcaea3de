package httpapi_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/hotseat-chess/internal/adapter/chesspresenter"
	"github.com/park285/hotseat-chess/internal/boardclient"
	"github.com/park285/hotseat-chess/internal/httpapi"
	"github.com/park285/hotseat-chess/internal/msgcat"
	"github.com/park285/hotseat-chess/internal/rules"
	"github.com/park285/hotseat-chess/internal/service/board"
	"github.com/park285/hotseat-chess/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	states []*chessdto.SessionState
}

func (r *recordingPublisher) Publish(sessionID string, state *chessdto.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

type harness struct {
	client *boardclient.Client
	raw    *fasthttp.Client
	pub    *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := msgcat.New("en", "")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	pub := &recordingPublisher{}
	svc := board.NewService(board.NewMemoryRepository(time.Hour), rules.New(), nil)
	presenter := chesspresenter.NewPresenter(chesspresenter.NewFormatter(cat), pub, nil)
	srv := httpapi.New(svc, presenter, []string{"http://board.local"}, nil)

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = ln.Close()
	})

	dial := func(addr string) (net.Conn, error) { return ln.Dial() }
	return &harness{
		client: boardclient.New("http://board.test", boardclient.WithDial(dial), boardclient.WithRetry(1)),
		raw:    &fasthttp.Client{Dial: dial},
		pub:    pub,
	}
}

func (h *harness) do(t *testing.T, method, uri, body string, headers map[string]string) *fasthttp.Response {
	t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.Header.SetMethod(method)
	req.SetRequestURI("http://board.test" + uri)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != "" {
		req.SetBodyString(body)
	}
	resp := fasthttp.AcquireResponse()
	if err := h.raw.DoTimeout(req, resp, 2*time.Second); err != nil {
		t.Fatalf("%s %s: %v", method, uri, err)
	}
	t.Cleanup(func() { fasthttp.ReleaseResponse(resp) })
	return resp
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st, err := h.client.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st.SessionID == "" || st.PlyCount != 0 || st.CanUndo || st.Status.Text != "White to move" {
		t.Fatalf("unexpected initial state %+v", st)
	}

	resp, err := h.client.Move(ctx, st.SessionID, "e2", "e4")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !resp.Accepted || resp.Ply == nil || resp.Ply.SAN != "e4" {
		t.Fatalf("expected accepted e4, got %+v", resp)
	}
	if resp.State.Status.Class != "black-turn" {
		t.Fatalf("class %q", resp.State.Status.Class)
	}

	rejected, err := h.client.Move(ctx, st.SessionID, "e7", "e3")
	if err != nil {
		t.Fatalf("illegal move must not be an error: %v", err)
	}
	if rejected.Accepted || rejected.Ply != nil || rejected.State.PlyCount != 1 {
		t.Fatalf("expected rejection, got %+v", rejected)
	}
	if n := h.pub.count(); n != 1 {
		t.Fatalf("only the accepted move should publish, got %d", n)
	}

	undone, err := h.client.Undo(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.PlyCount != 0 || undone.CanUndo {
		t.Fatalf("unexpected undo state %+v", undone)
	}

	if _, err := h.client.Move(ctx, st.SessionID, "d2", "d4"); err != nil {
		t.Fatalf("move: %v", err)
	}
	reset, err := h.client.Reset(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.PlyCount != 0 || len(reset.MovesSAN) != 0 {
		t.Fatalf("unexpected reset state %+v", reset)
	}

	got, err := h.client.State(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if got.FEN != reset.FEN {
		t.Fatalf("state after reset %q, want %q", got.FEN, reset.FEN)
	}

	if err := h.client.End(ctx, st.SessionID); err != nil {
		t.Fatalf("end: %v", err)
	}
	_, err = h.client.State(ctx, st.SessionID)
	var apiErr *boardclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != fasthttp.StatusNotFound || apiErr.Code != chessdto.CodeSessionNotFound {
		t.Fatalf("expected 404 after end, got %v", err)
	}
}

func TestScholarsMateOverHTTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	st, err := h.client.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	var last *chessdto.MoveResponse
	for _, mv := range [][2]string{{"e2", "e4"}, {"e7", "e5"}, {"f1", "c4"}, {"b8", "c6"}, {"d1", "h5"}, {"g8", "f6"}, {"h5", "f7"}} {
		last, err = h.client.Move(ctx, st.SessionID, mv[0], mv[1])
		if err != nil || !last.Accepted {
			t.Fatalf("move %v: %v %+v", mv, err, last)
		}
	}
	status := last.State.Status
	if status.Kind != "checkmate" || status.Winner != "white" || status.Class != "checkmate" {
		t.Fatalf("unexpected status %+v", status)
	}
	after, err := h.client.Move(ctx, st.SessionID, "a7", "a6")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if after.Accepted {
		t.Fatalf("moves after mate must be rejected")
	}
}

func TestErrorResponses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.State(ctx, "not-a-session")
	var apiErr *boardclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != fasthttp.StatusBadRequest || apiErr.Code != chessdto.CodeBadRequest {
		t.Fatalf("expected 400 for malformed id, got %v", err)
	}

	st, err := h.client.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp := h.do(t, fasthttp.MethodPost, "/api/sessions/"+st.SessionID+"/moves", "{not json", nil)
	if resp.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("bad body: status %d", resp.StatusCode())
	}
	resp = h.do(t, fasthttp.MethodPost, "/api/sessions/"+st.SessionID+"/moves", `{"from":"e2"}`, nil)
	if resp.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("missing square: status %d", resp.StatusCode())
	}
	resp = h.do(t, fasthttp.MethodGet, "/api/sessions/"+st.SessionID+"/undo", "", nil)
	if resp.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("GET undo: status %d", resp.StatusCode())
	}
	resp = h.do(t, fasthttp.MethodGet, "/nowhere", "", nil)
	if resp.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("unknown path: status %d", resp.StatusCode())
	}
}

func TestHealthAndCORS(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, fasthttp.MethodGet, "/healthz", "", nil)
	if resp.StatusCode() != fasthttp.StatusOK || !strings.Contains(string(resp.Body()), `"ok"`) {
		t.Fatalf("healthz: %d %s", resp.StatusCode(), resp.Body())
	}

	resp = h.do(t, fasthttp.MethodOptions, "/api/sessions", "", map[string]string{"Origin": "http://board.local"})
	if resp.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("preflight: status %d", resp.StatusCode())
	}
	if got := string(resp.Header.Peek("Access-Control-Allow-Origin")); got != "http://board.local" {
		t.Fatalf("allow origin %q", got)
	}

	resp = h.do(t, fasthttp.MethodGet, "/healthz", "", map[string]string{"Origin": "http://evil.example"})
	if got := resp.Header.Peek("Access-Control-Allow-Origin"); len(got) != 0 {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
