// Package blobstore stages downloaded audio under "{room}/{category}/{uuid}" keys.
// Objects are write-once and only ever removed by prefix sweeps.
package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrStorage wraps every backend failure.
var ErrStorage = errors.New("storage error")

// ErrNotFound is returned by Open for a missing locator. It also matches ErrStorage.
var ErrNotFound = notFound{}

type notFound struct{}

func (notFound) Error() string        { return "blob not found" }
func (notFound) Is(target error) bool { return target == ErrStorage }

// Store is a staging area for audio payloads.
type Store interface {
	// Put writes data under a fresh key below "{room}/{category}/" and returns that key.
	Put(ctx context.Context, room, category string, data []byte) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Prefix builds the sweep prefix for a room category, e.g. "123/queue/".
// The trailing slash keeps "queue" from also matching a playlist named "queue2".
func Prefix(room, category string) string {
	return cleanSegment(room) + "/" + cleanSegment(category) + "/"
}

// RoomPrefix covers every category of a room.
func RoomPrefix(room string) string {
	return cleanSegment(room) + "/"
}

// NewKey returns a unique locator below Prefix(room, category).
func NewKey(room, category string) string {
	return Prefix(room, category) + uuid.NewString()
}

// cleanSegment keeps path separators out of user-chosen categories (playlist names).
func cleanSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
