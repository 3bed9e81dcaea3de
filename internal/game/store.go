package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrIllegalMove    = errors.New("illegal chess move")
	ErrReplayDiverged = errors.New("ply log does not replay")
)

// Store owns the authoritative GameState of one board.
// 동시성 안전하지 않음: 호출자가 접근을 직렬화한다.
type Store struct {
	rules  Rules
	engine Engine
	state  GameState
	logger *zap.Logger
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore returns a store holding a new game.
func NewStore(rules Rules, opts ...Option) *Store {
	s := &Store{rules: rules, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Restore rebuilds a store by replaying plies from the start position.
// 각 수는 기보 표기로 재생되며 기록된 출발/도착 칸과 일치해야 한다.
func Restore(rules Rules, plies []Ply, opts ...Option) (*Store, error) {
	s := &Store{rules: rules, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	engine, replayed, err := replay(rules, plies)
	if err != nil {
		return nil, err
	}
	for i := range plies {
		if plies[i].Origin != replayed[i].Origin || plies[i].Destination != replayed[i].Destination {
			return nil, fmt.Errorf("%w: ply %d %s recorded as %s%s, replayed as %s%s",
				ErrReplayDiverged, i+1, plies[i].Notation,
				plies[i].Origin, plies[i].Destination,
				replayed[i].Origin, replayed[i].Destination)
		}
	}
	s.engine = engine
	s.state = GameState{Position: engine.Position(), Plies: replayed}
	return s, nil
}

// ApplyMove asks the engine to play origin to destination, promoting to a
// queen when the move is a promotion. It reports whether the move was
// accepted; a rejected move leaves the state untouched.
func (s *Store) ApplyMove(origin, destination Square) bool {
	if err := s.apply(origin, destination); err != nil {
		s.logger.Debug("chess_move_rejected",
			zap.String("from", string(origin)),
			zap.String("to", string(destination)),
			zap.Int("ply", len(s.state.Plies)),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *Store) apply(origin, destination Square) (err error) {
	if !origin.Valid() || !destination.Valid() {
		return fmt.Errorf("%w: malformed squares %q %q", ErrIllegalMove, origin, destination)
	}
	if ComputeDisplayStatus(s.engine).Terminal() {
		return fmt.Errorf("%w: game already finished", ErrIllegalMove)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: engine panic: %v", ErrIllegalMove, r)
			s.rebuild()
			return
		}
		if err != nil && s.engine.Position() != s.state.Position {
			s.rebuild()
		}
	}()

	desc, err := s.engine.ApplyMove(origin, destination, PromotionPolicy)
	if err != nil {
		if !errors.Is(err, ErrIllegalMove) {
			err = fmt.Errorf("%w: %v", ErrIllegalMove, err)
		}
		return err
	}

	plies := make([]Ply, len(s.state.Plies), len(s.state.Plies)+1)
	copy(plies, s.state.Plies)
	s.state = GameState{
		Position: s.engine.Position(),
		Plies:    append(plies, plyFrom(desc)),
	}
	return nil
}

// UndoLast는 이전 수들을 새 엔진에 재생해 마지막 수를 제거한다.
// 둔 수가 없으면 아무것도 하지 않음.
func (s *Store) UndoLast() {
	n := len(s.state.Plies)
	if n == 0 {
		return
	}
	plies := clonePlies(s.state.Plies[:n-1])
	engine, _, err := replay(s.rules, plies)
	if err != nil {
		// 결정적 엔진이면 도달 불가
		s.logger.Error("chess_undo_replay_failed", zap.Int("ply", n), zap.Error(err))
		return
	}
	s.engine = engine
	s.state = GameState{Position: engine.Position(), Plies: plies}
	s.logger.Debug("chess_undo", zap.Int("plies", len(plies)))
}

// Reset starts a new game.
func (s *Store) Reset() {
	s.engine = s.rules.NewGame()
	s.state = GameState{Position: s.engine.Position(), Plies: []Ply{}}
	s.logger.Debug("chess_reset")
}

// State returns a copy of the current GameState.
func (s *Store) State() GameState { return s.state.Clone() }

func (s *Store) PlyCount() int { return len(s.state.Plies) }

func (s *Store) CanUndo() bool { return len(s.state.Plies) > 0 }

// Status는 전체 이력을 가진 자체 엔진으로 현재 국면을 평가 (반복 무승부 판정용).
func (s *Store) Status() DisplayStatus { return ComputeDisplayStatus(s.engine) }

// Snapshot returns every derived view of the current state.
func (s *Store) Snapshot() Snapshot { return BuildSnapshot(s.State(), s.engine) }

func (s *Store) rebuild() {
	engine, _, err := replay(s.rules, s.state.Plies)
	if err != nil {
		s.logger.Error("chess_engine_rebuild_failed", zap.Error(err))
		return
	}
	s.engine = engine
}

func replay(rules Rules, plies []Ply) (Engine, []Ply, error) {
	engine := rules.NewGame()
	out := make([]Ply, 0, len(plies))
	for i, p := range plies {
		desc, err := engine.ApplyNotation(p.Notation)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: ply %d %q: %v", ErrReplayDiverged, i+1, p.Notation, err)
		}
		out = append(out, plyFrom(desc))
	}
	return engine, out, nil
}
