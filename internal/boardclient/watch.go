package boardclient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/park285/hotseat-chess/pkg/chessdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Watcher follows the live feed of one session and reconnects with backoff
// when the connection drops.
type Watcher struct {
	wsURL         string
	maxReconnects int
	dialTimeout   time.Duration
}

// NewWatcher takes the feed base URL, e.g. "ws://localhost:8081".
func NewWatcher(wsBaseURL, sessionID string, maxReconnects int) *Watcher {
	return &Watcher{
		wsURL:         strings.TrimRight(wsBaseURL, "/") + "/ws/" + strings.TrimSpace(sessionID),
		maxReconnects: maxReconnects,
		dialTimeout:   10 * time.Second,
	}
}

// Run calls fn for every state received until ctx is done or reconnecting
// gives up. A ctx cancellation returns nil.
func (w *Watcher) Run(ctx context.Context, fn func(*chessdto.SessionState)) error {
	failures := 0
	for {
		err := w.session(ctx, fn, func() { failures = 0 })
		if ctx.Err() != nil {
			return nil
		}
		failures++
		if failures > w.maxReconnects {
			return err
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(failures)); sleepErr != nil {
			return nil
		}
	}
}

func (w *Watcher) session(ctx context.Context, fn func(*chessdto.SessionState), connected func()) error {
	dialCtx, cancel := context.WithTimeout(ctx, w.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, w.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	connected()

	for {
		var st chessdto.SessionState
		if err := wsjson.Read(ctx, conn, &st); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return errors.New("feed closed by server")
			}
			return err
		}
		fn(&st)
	}
}
