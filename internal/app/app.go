// Package app wires configuration, storage, the board service and both
// servers together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/park285/hotseat-chess/internal/adapter/chesspresenter"
	"github.com/park285/hotseat-chess/internal/config"
	"github.com/park285/hotseat-chess/internal/httpapi"
	"github.com/park285/hotseat-chess/internal/live"
	"github.com/park285/hotseat-chess/internal/msgcat"
	"github.com/park285/hotseat-chess/internal/rules"
	"github.com/park285/hotseat-chess/internal/service/board"
	"github.com/park285/hotseat-chess/pkg/chessdto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Service   *board.Service
	Presenter *chesspresenter.Presenter
	Hub       *live.Hub
	API       *httpapi.Server
	Live      *http.Server

	cfg    *config.AppConfig
	logger *zap.Logger
	redis  *redis.Client
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	repo, err := a.repository(ctx)
	if err != nil {
		return nil, err
	}

	catalog, err := msgcat.New(cfg.MessageLocale, cfg.MessageDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	a.Service = board.NewService(repo, rules.New(), logger.Named("board"))
	a.Hub = live.NewHub(cfg.AllowedOrigins, logger.Named("live"))
	a.Presenter = chesspresenter.NewPresenter(chesspresenter.NewFormatter(catalog), a.Hub, logger)
	a.API = httpapi.New(a.Service, a.Presenter, cfg.AllowedOrigins, logger.Named("http"))

	mux := http.NewServeMux()
	mux.Handle("/ws/", a.Hub.Handler(a.loadState))
	mux.HandleFunc("/healthz", a.health)
	a.Live = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) repository(ctx context.Context) (board.Repository, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Info("session_store_memory", zap.Duration("ttl", a.cfg.SessionTTL))
		return board.NewMemoryRepository(a.cfg.SessionTTL), nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	a.redis = rdb
	a.logger.Info("session_store_redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB), zap.Duration("ttl", a.cfg.SessionTTL))
	return board.NewRedisRepository(rdb, a.cfg.SessionTTL), nil
}

func (a *App) loadState(ctx context.Context, sessionID string) (*chessdto.SessionState, error) {
	st, err := a.Service.Status(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return a.Presenter.State(st), nil
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	if a.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run listens on the configured addresses and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	apiLn, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTPAddr, err)
	}
	liveLn, err := net.Listen("tcp", a.cfg.LiveAddr)
	if err != nil {
		_ = apiLn.Close()
		return fmt.Errorf("listen %s: %w", a.cfg.LiveAddr, err)
	}
	return a.Serve(ctx, apiLn, liveLn)
}

// Serve runs the API and the live feed on the given listeners. It returns
// after both servers are shut down, either because ctx is done or because
// one of them failed.
func (a *App) Serve(ctx context.Context, apiLn, liveLn net.Listener) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("http_api_listening", zap.String("addr", apiLn.Addr().String()))
		errCh <- a.API.Serve(apiLn)
	}()
	go func() {
		a.logger.Info("live_feed_listening", zap.String("addr", liveLn.Addr().String()))
		err := a.Live.Serve(liveLn)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr == nil {
			serveErr = errors.New("server stopped unexpectedly")
		}
		a.logger.Error("server_failed", zap.Error(serveErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.API.Shutdown(sctx); err != nil {
		a.logger.Warn("http_api_shutdown_failed", zap.Error(err))
	}
	if err := a.Live.Shutdown(sctx); err != nil {
		a.logger.Warn("live_feed_shutdown_failed", zap.Error(err))
	}
	a.logger.Info("servers_stopped")
	return serveErr
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis_close_failed", zap.Error(err))
		}
	}
}
