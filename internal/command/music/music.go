// Package music implements the music bot commands on top of the playback
// coordinator and the playlist repository.
package music

import (
	"context"
	"strconv"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// Player is the part of the coordinator the commands drive.
type Player interface {
	Play(ctx context.Context, req player.PlayRequest) ([]sources.Track, error)
	Enqueue(ctx context.Context, room, sourceText, destination string) ([]sources.Track, error)
	Stop(ctx context.Context, room string) error
	Skip(ctx context.Context, room string) error
	Pause(ctx context.Context, room string) error
	Resume(ctx context.Context, room string) error
	Current(room string) (sources.Track, bool)
	Queue(ctx context.Context, room string) ([]sources.Track, error)
	DeletePlaylist(ctx context.Context, room, name string) bool
}

// Library reads saved playlists.
type Library interface {
	ListPlaylists(room string) []string
	ListTracks(room, name string) []sources.Track
}

// maxReply keeps replies under Discord's 2000 character message limit.
const maxReply = 1900

// Commands returns every music command.
func Commands(p Player, lib Library) []cmd.Command {
	return []cmd.Command{
		&PlayCommand{player: p},
		&StopCommand{player: p},
		&SkipCommand{player: p},
		&PauseCommand{player: p},
		&ResumeCommand{player: p},
		&QueueCommand{player: p},
		&AddSongCommand{player: p},
		&DeletePlaylistCommand{player: p},
		&ListPlaylistsCommand{lib: lib},
		&ListTracksCommand{lib: lib},
	}
}

// Register adds the music commands to reg, wrapped with mws.
func Register(reg *cmd.Registry, p Player, lib Library, mws ...cmd.Middleware) {
	command.Register(reg, mws, Commands(p, lib)...)
}

func slash(name, description string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: description,
		Options:     opts,
	}
}

func stringOpt(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    true,
	}
}

// numbered renders titles as a numbered list and cuts it to fit one message.
func numbered(header string, items []string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, item := range items {
		line := "\n" + strconv.Itoa(i+1) + ". " + item
		if b.Len()+len(line) > maxReply {
			b.WriteString("\n…")
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
