package queue

import (
	"context"
	"fmt"

	"github.com/keshon/jukebox/datastore"
	"github.com/keshon/jukebox/internal/music/sources"
)

const pausedKey = "paused"

func queueKey(room string) string { return "queue:" + room }

// DatastoreStore keeps queues in the file-backed datastore. It survives restarts
// of a single process; use RedisStore to share state between processes.
type DatastoreStore struct {
	ds    *datastore.DataStore
	owned bool
}

// NewDatastore opens (or creates) a queue file at path.
func NewDatastore(path string) (*DatastoreStore, error) {
	ds, err := datastore.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return &DatastoreStore{ds: ds, owned: true}, nil
}

// NewDatastoreWith shares an already open datastore. Close leaves it open.
func NewDatastoreWith(ds *datastore.DataStore) *DatastoreStore {
	return &DatastoreStore{ds: ds}
}

func (s *DatastoreStore) Push(ctx context.Context, room string, tracks ...sources.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	err := datastore.Update(s.ds, queueKey(room), func(q *[]sources.Track) (bool, error) {
		*q = append(*q, tracks...)
		return true, nil
	})
	return wrap(err)
}

func (s *DatastoreStore) PopFront(ctx context.Context, room string) (sources.Track, bool, error) {
	var (
		head sources.Track
		ok   bool
	)
	err := datastore.Update(s.ds, queueKey(room), func(q *[]sources.Track) (bool, error) {
		if len(*q) == 0 {
			return false, nil
		}
		head, ok = (*q)[0], true
		*q = (*q)[1:]
		return len(*q) > 0, nil
	})
	if err != nil {
		return sources.Track{}, false, wrap(err)
	}
	return head, ok, nil
}

func (s *DatastoreStore) Length(ctx context.Context, room string) (int, error) {
	q, err := s.List(ctx, room)
	return len(q), err
}

func (s *DatastoreStore) Clear(ctx context.Context, room string) error {
	return wrap(s.ds.Delete(queueKey(room)))
}

func (s *DatastoreStore) List(ctx context.Context, room string) ([]sources.Track, error) {
	var q []sources.Track
	if _, err := s.ds.Get(queueKey(room), &q); err != nil {
		return nil, wrap(err)
	}
	return q, nil
}

func (s *DatastoreStore) SetPaused(ctx context.Context, room string, paused bool) error {
	err := datastore.Update(s.ds, pausedKey, func(m *map[string]string) (bool, error) {
		if *m == nil {
			*m = make(map[string]string)
		}
		(*m)[room] = flagOf(paused)
		return true, nil
	})
	return wrap(err)
}

func (s *DatastoreStore) IsPaused(ctx context.Context, room string) (bool, error) {
	var m map[string]string
	if _, err := s.ds.Get(pausedKey, &m); err != nil {
		return false, wrap(err)
	}
	return m[room] == FlagPaused, nil
}

func (s *DatastoreStore) Close() error {
	if !s.owned {
		return nil
	}
	return wrap(s.ds.Close())
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrBackend, err)
}
