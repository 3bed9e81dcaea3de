package board

import (
	"context"
	"errors"
	"time"

	"github.com/park285/hotseat-chess/internal/game"
)

var (
	ErrSessionNotFound  = errors.New("chess session not found")
	ErrSessionExists    = errors.New("chess session already exists")
	ErrConcurrentUpdate = errors.New("chess session changed concurrently")
	ErrInvalidSession   = errors.New("invalid chess session id")
	errNilRecord        = errors.New("nil session record")
)

// Record is what a repository stores per session: the ply log and nothing
// derived from it.
type Record struct {
	ID        string     `json:"id"`
	Plies     []game.Ply `json:"plies"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Plies = append([]game.Ply(nil), r.Plies...)
	return &cp
}

// UpdateFunc mutates rec in place and reports whether it changed.
// 변경이 없으면 다시 쓰지 않는다.
type UpdateFunc func(rec *Record) (bool, error)

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	// Update runs fn on the current record and stores the result atomically.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Record, error)
	Delete(ctx context.Context, id string) error
}
