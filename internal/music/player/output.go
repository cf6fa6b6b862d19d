package player

import (
	"context"
	"io"

	"github.com/keshon/jukebox/internal/music/sources"
)

// Output renders audio into a room's voice channel.
type Output interface {
	Connect(ctx context.Context, room, channelID string) error
	Connected(room string) bool

	// Play starts rendering and returns at once. The returned channel is closed
	// when rendering ends for any reason. Output owns audio and closes it,
	// also when Play fails.
	Play(ctx context.Context, room string, track sources.Track, audio io.ReadCloser) (<-chan struct{}, error)

	// IsRendering is true from Play until the render ends, including while paused.
	IsRendering(room string) bool
	Pause(room string) bool
	Resume(room string) bool
	// Stop terminates the current render, paused or not. No-op when idle.
	Stop(room string)

	Disconnect(room string) error

	// AloneRooms lists rooms whose voice channel holds only the bot.
	AloneRooms() []string
}

// Resolver turns a media URL into audio.
type Resolver interface {
	IsMediaURL(input string) bool
	Resolve(ctx context.Context, url string) (sources.Audio, error)
}

// Playlists is the durable playlist repository. Failures come back as false
// or empty results; the repository logs them.
type Playlists interface {
	AddSong(room, name string, track sources.Track) bool
	DeletePlaylist(room, name string) bool
	ListPlaylists(room string) []string
	ListTracks(room, name string) []sources.Track
}
