// Package live pushes session states to browser tabs over websockets.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/hotseat-chess/internal/service/board"
	"github.com/park285/hotseat-chess/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	watcherBuffer = 4
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
)

// Loader returns the current state of a session for a new watcher.
type Loader func(ctx context.Context, sessionID string) (*chessdto.SessionState, error)

// Hub tracks the watchers of every session. Each watcher gets the latest
// states through a small buffered channel; a slow watcher loses older states,
// never the newest one.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan []byte]struct{}

	origins []string
	logger  *zap.Logger
}

func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		watchers: make(map[string]map[chan []byte]struct{}),
		origins:  allowedOrigins,
		logger:   logger,
	}
}

func (h *Hub) Publish(sessionID string, state *chessdto.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[sessionID] {
		select {
		case ch <- raw:
		default:
			// 버퍼 가득: 가장 오래된 상태를 버림
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- raw:
			default:
			}
		}
	}
	return nil
}

// Watchers returns the number of open feeds for a session.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[sessionID])
}

func (h *Hub) subscribe(sessionID string) (chan []byte, func()) {
	ch := make(chan []byte, watcherBuffer)
	h.mu.Lock()
	set, ok := h.watchers[sessionID]
	if !ok {
		set = make(map[chan []byte]struct{})
		h.watchers[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers[sessionID], ch)
		if len(h.watchers[sessionID]) == 0 {
			delete(h.watchers, sessionID)
		}
	}
}

// Handler serves GET /ws/{id}: the current state first, then every state
// published for the session until the client goes away.
func (h *Hub) Handler(load Loader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/"), "/")
		if id == "" {
			http.NotFound(w, r)
			return
		}

		// 로더가 정규화된 id를 반환: 발행 측과 같은 키로 구독
		state, err := load(r.Context(), id)
		if err != nil {
			h.refuse(w, id, err)
			return
		}
		ch, unsubscribe := h.subscribe(state.SessionID)
		defer unsubscribe()
		// 구독 전에 발행된 상태를 놓치지 않도록 다시 로드
		if state, err = load(r.Context(), state.SessionID); err != nil {
			h.refuse(w, id, err)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns:  h.origins,
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		if err != nil {
			h.logger.Debug("live_accept_failed", zap.String("session_id", id), zap.Error(err))
			return
		}
		defer c.CloseNow()

		h.logger.Debug("live_watcher_joined", zap.String("session_id", id))
		ctx := c.CloseRead(r.Context())
		if err := h.write(ctx, c, state); err != nil {
			return
		}

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case raw := <-ch:
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := c.Write(wctx, websocket.MessageText, raw)
				cancel()
				if err != nil {
					h.logger.Debug("live_write_failed", zap.String("session_id", id), zap.Error(err))
					return
				}
			case <-ticker.C:
				pctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := c.Ping(pctx)
				cancel()
				if err != nil {
					return
				}
			}
		}
	})
}

func (h *Hub) write(ctx context.Context, c *websocket.Conn, state *chessdto.SessionState) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c, state)
}

func (h *Hub) refuse(w http.ResponseWriter, id string, err error) {
	status := loadStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Warn("live_load_failed", zap.String("session_id", id), zap.Error(err))
	}
	http.Error(w, http.StatusText(status), status)
}

func loadStatus(err error) int {
	switch {
	case errors.Is(err, board.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, board.ErrInvalidSession):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
