package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = time.Hour

// RedisRepository는 세션 기록을 JSON 값 하나로 저장. 쓰기마다 TTL 갱신.
type RedisRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRepository(rdb *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisRepository) key(id string) string { return "hotseat:session:" + strings.TrimSpace(id) }

func (r *RedisRepository) Create(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errNilRecord
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, r.key(rec.ID), raw, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrSessionExists
	}
	return nil
}

func (r *RedisRepository) Load(ctx context.Context, id string) (*Record, error) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(raw)
}

// Update는 세션 키를 WATCH한 상태에서 fn을 실행한다.
// 읽기와 EXEC 사이에 다른 클라이언트가 쓰면 ErrConcurrentUpdate로 중단.
func (r *RedisRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*Record, error) {
	key := r.key(id)
	var out *Record
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		changed, err := fn(rec)
		if err != nil {
			return err
		}
		if !changed {
			out = rec
			return nil
		}
		rec.UpdatedAt = time.Now()
		newRaw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, r.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = rec
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	n, err := r.rdb.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func decodeRecord(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}
