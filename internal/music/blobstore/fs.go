package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// FSStore keeps blobs as files below a root directory of an afero filesystem.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFS returns a store rooted at dir on the OS filesystem.
func NewFS(dir string) (*FSStore, error) {
	return NewFSWith(afero.NewOsFs(), dir)
}

// NewFSWith is NewFS over an arbitrary afero filesystem.
func NewFSWith(fs afero.Fs, dir string) (*FSStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrStorage, dir, err)
	}
	return &FSStore{fs: fs, root: dir}, nil
}

func (s *FSStore) Put(ctx context.Context, room, category string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := NewKey(room, category)
	p := s.pathOf(key)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir: %v", ErrStorage, err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrStorage, key, err)
	}
	return key, nil
}

func (s *FSStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.pathOf(locator))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, locator, err)
	}
	return f, nil
}

func (s *FSStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	var failed int
	for _, k := range keys {
		if err := s.fs.Remove(s.pathOf(k)); err != nil && !os.IsNotExist(err) {
			failed++
			log.Warn().Str("module", "blobstore").Str("key", k).Err(err).Msg("delete failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d deletes under %q failed", ErrStorage, failed, len(keys), prefix)
	}
	return nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %q: %v", ErrStorage, prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) pathOf(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
