package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/rs/zerolog/log"
)

var errEmptyName = errors.New("playlist name is empty")

// AddSong appends track to the named playlist, creating the playlist on first use.
// Failures are logged and reported as false.
func (s *Storage) AddSong(guildID, name string, track sources.Track) bool {
	name = strings.TrimSpace(name)
	err := s.updateGuildRecord(guildID, func(r *Record) error {
		if name == "" {
			return errEmptyName
		}
		for i := range r.Playlists {
			if r.Playlists[i].Name == name {
				r.Playlists[i].Tracks = append(r.Playlists[i].Tracks, track)
				return nil
			}
		}
		r.Playlists = append(r.Playlists, Playlist{
			Name:      name,
			Tracks:    []sources.Track{track},
			CreatedAt: time.Now(),
		})
		return nil
	})
	if err != nil {
		log.Error().Str("module", "storage").Str("guild", guildID).Str("playlist", name).Err(err).Msg("add song failed")
		return false
	}
	return true
}

// DeletePlaylist removes the playlist and its tracks. Deleting a playlist that
// does not exist succeeds; only a failed write reports false.
func (s *Storage) DeletePlaylist(guildID, name string) bool {
	err := s.updateGuildRecord(guildID, func(r *Record) error {
		kept := r.Playlists[:0]
		for _, p := range r.Playlists {
			if p.Name == name {
				continue
			}
			kept = append(kept, p)
		}
		r.Playlists = kept
		return nil
	})
	if err != nil {
		log.Error().Str("module", "storage").Str("guild", guildID).Str("playlist", name).Err(err).Msg("delete playlist failed")
		return false
	}
	return true
}

// ListPlaylists returns playlist names in creation order.
func (s *Storage) ListPlaylists(guildID string) []string {
	r, err := s.getGuildRecord(guildID)
	if err != nil {
		log.Error().Str("module", "storage").Str("guild", guildID).Err(err).Msg("list playlists failed")
		return nil
	}
	names := make([]string, 0, len(r.Playlists))
	for _, p := range r.Playlists {
		names = append(names, p.Name)
	}
	return names
}

// ListTracks returns the playlist's tracks in insertion order, or nil if unknown.
func (s *Storage) ListTracks(guildID, name string) []sources.Track {
	r, err := s.getGuildRecord(guildID)
	if err != nil {
		log.Error().Str("module", "storage").Str("guild", guildID).Str("playlist", name).Err(err).Msg("list tracks failed")
		return nil
	}
	for _, p := range r.Playlists {
		if p.Name == name {
			return p.Tracks
		}
	}
	return nil
}
