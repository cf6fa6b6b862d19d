package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one list per room and a shared hash of paused flags, so
// several bot processes observe the same queue state.
type RedisStore struct {
	rdb       redis.UniversalClient
	namespace string
}

// RedisOptions selects the server and the key namespace.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

func NewRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrBackend, opts.Addr, err)
	}
	return NewRedisWith(rdb, opts.Namespace), nil
}

func NewRedisWith(rdb redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "jukebox"
	}
	return &RedisStore{rdb: rdb, namespace: namespace}
}

func (s *RedisStore) listKey(room string) string { return s.namespace + ":queue:" + room }

func (s *RedisStore) pausedKey() string { return s.namespace + ":is_paused" }

func (s *RedisStore) Push(ctx context.Context, room string, tracks ...sources.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	values := make([]any, 0, len(tracks))
	for _, t := range tracks {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("%w: encode track: %v", ErrBackend, err)
		}
		values = append(values, b)
	}
	// a single RPUSH keeps a caller's batch contiguous
	return wrap(s.rdb.RPush(ctx, s.listKey(room), values...).Err())
}

func (s *RedisStore) PopFront(ctx context.Context, room string) (sources.Track, bool, error) {
	raw, err := s.rdb.LPop(ctx, s.listKey(room)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sources.Track{}, false, nil
	}
	if err != nil {
		return sources.Track{}, false, wrap(err)
	}
	var t sources.Track
	if err := json.Unmarshal(raw, &t); err != nil {
		return sources.Track{}, false, fmt.Errorf("%w: decode track: %v", ErrBackend, err)
	}
	return t, true, nil
}

func (s *RedisStore) Length(ctx context.Context, room string) (int, error) {
	n, err := s.rdb.LLen(ctx, s.listKey(room)).Result()
	return int(n), wrap(err)
}

func (s *RedisStore) Clear(ctx context.Context, room string) error {
	return wrap(s.rdb.Del(ctx, s.listKey(room)).Err())
}

func (s *RedisStore) List(ctx context.Context, room string) ([]sources.Track, error) {
	raws, err := s.rdb.LRange(ctx, s.listKey(room), 0, -1).Result()
	if err != nil {
		return nil, wrap(err)
	}
	tracks := make([]sources.Track, 0, len(raws))
	for _, raw := range raws {
		var t sources.Track
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("%w: decode track: %v", ErrBackend, err)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func (s *RedisStore) SetPaused(ctx context.Context, room string, paused bool) error {
	return wrap(s.rdb.HSet(ctx, s.pausedKey(), room, flagOf(paused)).Err())
}

func (s *RedisStore) IsPaused(ctx context.Context, room string) (bool, error) {
	v, err := s.rdb.HGet(ctx, s.pausedKey(), room).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrap(err)
	}
	return v == FlagPaused, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
