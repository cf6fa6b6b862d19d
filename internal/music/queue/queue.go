// Package queue holds each room's pending tracks and its durable paused flag.
package queue

import (
	"context"
	"errors"

	"github.com/keshon/jukebox/internal/music/sources"
)

// Paused flag values as persisted.
const (
	FlagPaused    = "paused"
	FlagNotPaused = "not_paused"
)

// ErrBackend wraps failures of the underlying store.
var ErrBackend = errors.New("queue backend error")

// Store is a per-room FIFO plus a paused flag. Every method is atomic for a
// single room; nothing locks across rooms.
type Store interface {
	Push(ctx context.Context, room string, tracks ...sources.Track) error
	// PopFront removes and returns the head of the queue. ok is false when empty.
	PopFront(ctx context.Context, room string) (track sources.Track, ok bool, err error)
	Length(ctx context.Context, room string) (int, error)
	// Clear truncates the queue. A track already popped is unaffected.
	Clear(ctx context.Context, room string) error
	// List returns the pending tracks without removing them.
	List(ctx context.Context, room string) ([]sources.Track, error)
	SetPaused(ctx context.Context, room string, paused bool) error
	IsPaused(ctx context.Context, room string) (bool, error)
	Close() error
}

func flagOf(paused bool) string {
	if paused {
		return FlagPaused
	}
	return FlagNotPaused
}
