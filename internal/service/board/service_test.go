package board

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/hotseat-chess/internal/game"
	"github.com/park285/hotseat-chess/internal/rules"
	"github.com/redis/go-redis/v9"
)

type repoFactory func(t *testing.T) Repository

func newMiniredisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRepository(rdb, time.Minute), mr
}

var repos = map[string]repoFactory{
	"memory": func(t *testing.T) Repository { return NewMemoryRepository(time.Minute) },
	"redis": func(t *testing.T) Repository {
		repo, _ := newMiniredisRepo(t)
		return repo
	},
}

func eachRepo(t *testing.T, fn func(t *testing.T, svc *Service)) {
	for name, factory := range repos {
		t.Run(name, func(t *testing.T) {
			fn(t, NewService(factory(t), rules.New(), nil))
		})
	}
}

func TestServiceMoveLifecycle(t *testing.T) {
	eachRepo(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		st, err := svc.Start(ctx)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if st.Snapshot.State.Position != game.StartPosition || st.Snapshot.CanUndo() {
			t.Fatalf("unexpected initial state %+v", st.Snapshot)
		}

		sum, err := svc.Move(ctx, st.SessionID, "E2", " e4 ")
		if err != nil {
			t.Fatalf("move: %v", err)
		}
		if !sum.Accepted || sum.Ply == nil || sum.Ply.Notation != "e4" {
			t.Fatalf("unexpected summary %+v", sum)
		}

		rejected, err := svc.Move(ctx, st.SessionID, "e4", "e6")
		if err != nil {
			t.Fatalf("illegal move must not be an error: %v", err)
		}
		if rejected.Accepted || rejected.Ply != nil {
			t.Fatalf("e4e6 should be rejected")
		}
		if got := rejected.State.Snapshot.State.Plies; len(got) != 1 {
			t.Fatalf("rejected move changed history: %+v", got)
		}

		loaded, err := svc.Status(ctx, st.SessionID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if loaded.Snapshot.State.Position != sum.State.Snapshot.State.Position {
			t.Fatalf("stored position %q, want %q", loaded.Snapshot.State.Position, sum.State.Snapshot.State.Position)
		}
	})
}

func TestServiceScholarsMate(t *testing.T) {
	eachRepo(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		st, err := svc.Start(ctx)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for _, mv := range []string{"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"} {
			sum, err := svc.Move(ctx, st.SessionID, mv[:2], mv[2:])
			if err != nil || !sum.Accepted {
				t.Fatalf("move %s: accepted=%v err=%v", mv, sum != nil && sum.Accepted, err)
			}
		}
		final, err := svc.Status(ctx, st.SessionID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if final.Snapshot.Status.Kind != game.StatusCheckmate {
			t.Fatalf("expected checkmate, got %+v", final.Snapshot.Status)
		}
		after, err := svc.Move(ctx, st.SessionID, "a7", "a6")
		if err != nil || after.Accepted {
			t.Fatalf("moves after mate must be rejected, accepted=%v err=%v", after != nil && after.Accepted, err)
		}
	})
}

func TestServiceUndoAndReset(t *testing.T) {
	eachRepo(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		st, _ := svc.Start(ctx)

		undone, err := svc.Undo(ctx, st.SessionID)
		if err != nil {
			t.Fatalf("undo on empty game: %v", err)
		}
		if len(undone.Snapshot.State.Plies) != 0 {
			t.Fatalf("undo on empty game changed state")
		}

		for _, mv := range []string{"e2e4", "e7e5", "g1f3"} {
			if _, err := svc.Move(ctx, st.SessionID, mv[:2], mv[2:]); err != nil {
				t.Fatalf("move %s: %v", mv, err)
			}
		}
		if _, err := svc.Undo(ctx, st.SessionID); err != nil {
			t.Fatalf("undo: %v", err)
		}
		undone, err = svc.Undo(ctx, st.SessionID)
		if err != nil {
			t.Fatalf("undo: %v", err)
		}
		if got := undone.Snapshot.State.Notations(); len(got) != 1 || got[0] != "e4" {
			t.Fatalf("expected [e4], got %v", got)
		}

		reset, err := svc.Reset(ctx, st.SessionID)
		if err != nil {
			t.Fatalf("reset: %v", err)
		}
		if reset.Snapshot.State.Position != game.StartPosition || len(reset.Snapshot.State.Plies) != 0 {
			t.Fatalf("unexpected state after reset %+v", reset.Snapshot.State)
		}
		loaded, _ := svc.Status(ctx, st.SessionID)
		if len(loaded.Snapshot.State.Plies) != 0 {
			t.Fatalf("reset was not persisted")
		}
	})
}

func TestServiceErrors(t *testing.T) {
	eachRepo(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		if _, err := svc.Status(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("expected ErrInvalidSession, got %v", err)
		}
		missing := "7f1d1c9e-0c57-4c6b-9d43-1f0e0b1a2c3d"
		if _, err := svc.Move(ctx, missing, "e2", "e4"); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
		st, _ := svc.Start(ctx)
		if err := svc.End(ctx, st.SessionID); err != nil {
			t.Fatalf("end: %v", err)
		}
		if _, err := svc.Status(ctx, st.SessionID); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("ended session should be gone, got %v", err)
		}
		if err := svc.End(ctx, st.SessionID); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("second end should fail, got %v", err)
		}
	})
}

func TestRedisRepositoryStoresPlyLogWithTTL(t *testing.T) {
	repo, mr := newMiniredisRepo(t)
	svc := NewService(repo, rules.New(), nil)
	ctx := context.Background()
	st, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Move(ctx, st.SessionID, "d2", "d4"); err != nil {
		t.Fatalf("move: %v", err)
	}

	key := "hotseat:session:" + st.SessionID
	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("stored key: %v", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rec.Plies) != 1 || rec.Plies[0].Notation != "d4" || rec.Plies[0].Origin != "d2" {
		t.Fatalf("unexpected stored plies %+v", rec.Plies)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := svc.Status(ctx, st.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}
}

func TestRedisRepositoryCorruptLog(t *testing.T) {
	repo, mr := newMiniredisRepo(t)
	svc := NewService(repo, rules.New(), nil)
	ctx := context.Background()
	st, _ := svc.Start(ctx)

	bad, _ := json.Marshal(Record{ID: st.SessionID, Plies: []game.Ply{{Origin: "e2", Destination: "e5", Notation: "e5"}}})
	if err := mr.Set("hotseat:session:"+st.SessionID, string(bad)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Status(ctx, st.SessionID); !errors.Is(err, game.ErrReplayDiverged) {
		t.Fatalf("expected ErrReplayDiverged, got %v", err)
	}
}

func TestRedisRepositoryConflict(t *testing.T) {
	repo, mr := newMiniredisRepo(t)
	ctx := context.Background()
	rec := &Record{ID: "s1", Plies: []game.Ply{}}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, rec); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })

	_, err := repo.Update(ctx, "s1", func(r *Record) (bool, error) {
		// a second writer lands between WATCH and EXEC
		if err := other.Set(ctx, "hotseat:session:s1", `{"id":"s1","plies":[]}`, time.Minute).Err(); err != nil {
			return false, err
		}
		r.Plies = append(r.Plies, game.Ply{Notation: "e4"})
		return true, nil
	})
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
}

func TestMemoryRepositoryExpiry(t *testing.T) {
	repo := NewMemoryRepository(time.Minute).(*memrepo)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	if err := repo.Create(ctx, &Record{ID: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Load(ctx, "a"); err != nil {
		t.Fatalf("load: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.Load(ctx, "a"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if err := repo.Create(ctx, &Record{ID: "a"}); err != nil {
		t.Fatalf("expired id should be reusable: %v", err)
	}
}
