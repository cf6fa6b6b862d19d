// Package storage persists per-guild records: named playlists and the recent
// command history. Every guild is a single JSON document in the datastore.
package storage

import (
	"fmt"
	"time"

	"github.com/keshon/jukebox/datastore"
	"github.com/keshon/jukebox/internal/music/sources"
)

const commandHistoryLimit int = 20

type Storage struct {
	ds    *datastore.DataStore
	owned bool
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

type Playlist struct {
	Name      string          `json:"name"`
	Tracks    []sources.Track `json:"tracks"`
	CreatedAt time.Time       `json:"created_at"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	Playlists           []Playlist             `json:"playlists"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds, owned: true}, nil
}

// NewWith wraps an open datastore. Close leaves it open.
func NewWith(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds}
}

func (s *Storage) Close() error {
	if !s.owned {
		return nil
	}
	return s.ds.Close()
}

func guildKey(guildID string) string { return "guild:" + guildID }

// updateGuildRecord runs fn against the guild's record under the datastore lock.
func (s *Storage) updateGuildRecord(guildID string, fn func(r *Record) error) error {
	err := datastore.Update(s.ds, guildKey(guildID), func(r *Record) (bool, error) {
		if err := fn(r); err != nil {
			return true, err
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("update guild %s: %w", guildID, err)
	}
	return nil
}

func (s *Storage) getGuildRecord(guildID string) (Record, error) {
	var r Record
	if _, err := s.ds.Get(guildKey(guildID), &r); err != nil {
		return Record{}, fmt.Errorf("read guild %s: %w", guildID, err)
	}
	return r, nil
}

// AppendCommandToHistory appends a command history record for a guild,
// keeping only the most recent entries.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return s.updateGuildRecord(guildID, func(r *Record) error {
		r.CommandsHistoryList = append(r.CommandsHistoryList, command)
		if len(r.CommandsHistoryList) > commandHistoryLimit {
			r.CommandsHistoryList = r.CommandsHistoryList[len(r.CommandsHistoryList)-commandHistoryLimit:]
		}
		return nil
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	r, err := s.getGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsHistoryList, nil
}
