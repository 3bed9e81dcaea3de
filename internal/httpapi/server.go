// Package httpapi exposes the board service as a JSON API on fasthttp.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/park285/hotseat-chess/internal/adapter/chesspresenter"
	"github.com/park285/hotseat-chess/internal/game"
	"github.com/park285/hotseat-chess/internal/service/board"
	"github.com/park285/hotseat-chess/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const maxBodySize = 64 << 10

var errBadBody = errors.New("malformed request body")

type Server struct {
	svc       *board.Service
	presenter *chesspresenter.Presenter
	logger    *zap.Logger
	origins   map[string]struct{}
	anyOrigin bool

	srv *fasthttp.Server
}

func New(svc *board.Service, presenter *chesspresenter.Presenter, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:       svc,
		presenter: presenter,
		logger:    logger,
		origins:   make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			s.anyOrigin = true
			continue
		}
		s.origins[o] = struct{}{}
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "hotseat-chess",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxRequestBodySize: maxBodySize,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handler routes:
//
//	POST   /api/sessions
//	GET    /api/sessions/{id}
//	POST   /api/sessions/{id}/moves
//	POST   /api/sessions/{id}/undo
//	POST   /api/sessions/{id}/reset
//	DELETE /api/sessions/{id}
//	GET    /healthz
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	started := time.Now()
	defer func() {
		s.logger.Debug("http_request",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("took", time.Since(started)),
		)
	}()

	s.cors(ctx)
	if ctx.IsOptions() {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	path := strings.TrimRight(string(ctx.Path()), "/")
	switch {
	case path == "/healthz":
		if !ctx.IsGet() {
			s.methodNotAllowed(ctx)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
	case path == "/api/sessions":
		if !ctx.IsPost() {
			s.methodNotAllowed(ctx)
			return
		}
		s.start(ctx)
	case strings.HasPrefix(path, "/api/sessions/"):
		s.session(ctx, strings.Split(strings.TrimPrefix(path, "/api/sessions/"), "/"))
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, chessdto.CodeSessionNotFound, false)
	}
}

func (s *Server) session(ctx *fasthttp.RequestCtx, parts []string) {
	id := parts[0]
	switch {
	case len(parts) == 1 && ctx.IsGet():
		st, err := s.svc.Status(ctx, id)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, s.presenter.State(st))
	case len(parts) == 1 && ctx.IsDelete():
		if err := s.svc.End(ctx, id); err != nil {
			s.fail(ctx, err)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	case len(parts) == 2 && parts[1] == "moves" && ctx.IsPost():
		s.move(ctx, id)
	case len(parts) == 2 && parts[1] == "undo" && ctx.IsPost():
		st, err := s.svc.Undo(ctx, id)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, s.presenter.Changed(st))
	case len(parts) == 2 && parts[1] == "reset" && ctx.IsPost():
		st, err := s.svc.Reset(ctx, id)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, s.presenter.Changed(st))
	case len(parts) <= 2:
		s.methodNotAllowed(ctx)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, chessdto.CodeSessionNotFound, false)
	}
}

func (s *Server) start(ctx *fasthttp.RequestCtx) {
	st, err := s.svc.Start(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	dto := s.presenter.State(st)
	ctx.Response.Header.Set("Location", "/api/sessions/"+dto.SessionID)
	writeJSON(ctx, fasthttp.StatusCreated, dto)
}

func (s *Server) move(ctx *fasthttp.RequestCtx, id string) {
	var req chessdto.MoveRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.fail(ctx, errBadBody)
		return
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		s.fail(ctx, errBadBody)
		return
	}
	sum, err := s.svc.Move(ctx, id, req.From, req.To)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, s.presenter.Move(sum))
}

func (s *Server) fail(ctx *fasthttp.RequestCtx, err error) {
	status, code, retryable := classify(err)
	if status == fasthttp.StatusInternalServerError {
		s.logger.Error("http_request_failed", zap.ByteString("path", ctx.Path()), zap.Error(err))
	}
	s.writeError(ctx, status, code, retryable)
}

func classify(err error) (status int, code string, retryable bool) {
	switch {
	case errors.Is(err, errBadBody), errors.Is(err, board.ErrInvalidSession):
		return fasthttp.StatusBadRequest, chessdto.CodeBadRequest, false
	case errors.Is(err, board.ErrSessionNotFound):
		return fasthttp.StatusNotFound, chessdto.CodeSessionNotFound, false
	case errors.Is(err, board.ErrConcurrentUpdate):
		return fasthttp.StatusConflict, chessdto.CodeConflict, true
	case errors.Is(err, game.ErrReplayDiverged):
		return fasthttp.StatusInternalServerError, chessdto.CodeInternal, false
	default:
		return fasthttp.StatusInternalServerError, chessdto.CodeInternal, true
	}
}

func (s *Server) methodNotAllowed(ctx *fasthttp.RequestCtx) {
	s.writeError(ctx, fasthttp.StatusMethodNotAllowed, chessdto.CodeBadRequest, false)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, code string, retryable bool) {
	writeJSON(ctx, status, s.presenter.Formatter().Error(code, retryable))
}

func (s *Server) cors(ctx *fasthttp.RequestCtx) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		return
	}
	if _, ok := s.origins[origin]; !ok && !s.anyOrigin {
		return
	}
	h := &ctx.Response.Header
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Vary", "Origin")
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}
