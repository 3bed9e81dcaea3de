package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/hotseat-chess/internal/game"
	"go.uber.org/zap"
)

// Service runs hot-seat games stored in a Repository. Every command loads the
// session's ply log, rebuilds a game.Store by replay, applies the command and
// writes the log back in one repository update.
type Service struct {
	repo   Repository
	rules  game.Rules
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

func NewService(repo Repository, rules game.Rules, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		rules:  rules,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

type SessionState struct {
	SessionID string
	Snapshot  game.Snapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MoveSummary struct {
	State    *SessionState
	Accepted bool
	// Ply is the accepted half-move, nil when the move was rejected.
	Ply *game.Ply
}

func (s *Service) Start(ctx context.Context) (*SessionState, error) {
	now := s.now()
	rec := &Record{ID: s.newID(), Plies: []game.Ply{}, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	store := game.NewStore(s.rules, game.WithLogger(s.logger))
	s.logger.Info("chess_session_started", zap.String("session_id", rec.ID))
	return stateOf(rec, store), nil
}

func (s *Service) Status(ctx context.Context, sessionID string) (*SessionState, error) {
	sessionID, err := normalizeID(sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	store, err := s.restore(rec)
	if err != nil {
		return nil, err
	}
	return stateOf(rec, store), nil
}

// Move applies from-to for whichever side is to move.
// 불법 수는 에러가 아님: Accepted=false와 변경 없는 상태를 돌려준다.
func (s *Service) Move(ctx context.Context, sessionID, from, to string) (*MoveSummary, error) {
	sessionID, err := normalizeID(sessionID)
	if err != nil {
		return nil, err
	}
	origin := game.Square(strings.ToLower(strings.TrimSpace(from)))
	destination := game.Square(strings.ToLower(strings.TrimSpace(to)))

	var (
		store    *game.Store
		accepted bool
	)
	rec, err := s.repo.Update(ctx, sessionID, func(rec *Record) (bool, error) {
		st, err := s.restore(rec)
		if err != nil {
			return false, err
		}
		store = st
		accepted = store.ApplyMove(origin, destination)
		if !accepted {
			return false, nil
		}
		rec.Plies = store.State().Plies
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	summary := &MoveSummary{State: stateOf(rec, store), Accepted: accepted}
	if accepted {
		plies := summary.State.Snapshot.State.Plies
		last := plies[len(plies)-1]
		summary.Ply = &last
		s.logger.Debug("chess_move_applied",
			zap.String("session_id", sessionID),
			zap.String("san", last.Notation),
			zap.String("status", string(summary.State.Snapshot.Status.Kind)),
		)
	}
	return summary, nil
}

// Undo는 마지막 수를 되돌린다. 수가 없으면 상태 그대로 반환.
func (s *Service) Undo(ctx context.Context, sessionID string) (*SessionState, error) {
	return s.mutate(ctx, sessionID, "chess_undo", func(store *game.Store) bool {
		if !store.CanUndo() {
			return false
		}
		store.UndoLast()
		return true
	})
}

// Reset은 세션을 초기 국면부터 다시 시작.
func (s *Service) Reset(ctx context.Context, sessionID string) (*SessionState, error) {
	return s.mutate(ctx, sessionID, "chess_reset", func(store *game.Store) bool {
		changed := store.CanUndo()
		store.Reset()
		return changed
	})
}

func (s *Service) End(ctx context.Context, sessionID string) error {
	sessionID, err := normalizeID(sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("chess_session_ended", zap.String("session_id", sessionID))
	return nil
}

func (s *Service) mutate(ctx context.Context, sessionID, event string, op func(*game.Store) bool) (*SessionState, error) {
	sessionID, err := normalizeID(sessionID)
	if err != nil {
		return nil, err
	}
	var store *game.Store
	rec, err := s.repo.Update(ctx, sessionID, func(rec *Record) (bool, error) {
		st, err := s.restore(rec)
		if err != nil {
			return false, err
		}
		store = st
		if !op(store) {
			return false, nil
		}
		rec.Plies = store.State().Plies
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug(event, zap.String("session_id", sessionID), zap.Int("plies", store.PlyCount()))
	return stateOf(rec, store), nil
}

func (s *Service) restore(rec *Record) (*game.Store, error) {
	store, err := game.Restore(s.rules, rec.Plies, game.WithLogger(s.logger))
	if err != nil {
		s.logger.Error("chess_session_corrupt", zap.String("session_id", rec.ID), zap.Error(err))
		return nil, fmt.Errorf("restore session %s: %w", rec.ID, err)
	}
	return store, nil
}

func stateOf(rec *Record, store *game.Store) *SessionState {
	return &SessionState{
		SessionID: rec.ID,
		Snapshot:  store.Snapshot(),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func normalizeID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return id, nil
}
