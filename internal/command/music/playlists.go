package music

import (
	"context"
	"errors"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type AddSongCommand struct{ player Player }

func (c *AddSongCommand) Name() string        { return "add_song_to_playlist" }
func (c *AddSongCommand) Description() string { return "Download a song into a saved playlist" }
func (c *AddSongCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description(),
		stringOpt("playlist", "Playlist name"),
		stringOpt("url", "YouTube or SoundCloud link"))
}

// Run takes the link as the last argument; everything before it is the name.
func (c *AddSongCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}
	if len(inv.Args) < 2 {
		return cc.Replyf("Usage: add_song_to_playlist <playlist> <link>")
	}
	url := inv.Args[len(inv.Args)-1]
	name := strings.TrimSpace(strings.Join(inv.Args[:len(inv.Args)-1], " "))

	if err := player.ValidatePlaylistName(name); err != nil {
		if domain, ok := sources.ContainsSourceDomain(name); ok {
			return cc.Replyf("Using %s as part of a playlist name is not allowed", domain)
		}
		return cc.Replyf("%q can't be used as a playlist name", name)
	}

	tracks, err := c.player.Enqueue(ctx, cc.GuildID, url, name)
	switch {
	case err == nil && len(tracks) > 0:
		return cc.Replyf("Song '%s' added to playlist '%s'", tracks[0].Title, name)
	case errors.Is(err, sources.ErrDownloadFailed), errors.Is(err, sources.ErrUnsupportedSource):
		return cc.Replyf("Failed to download the track")
	default:
		return cc.Replyf("Failed to add the song to playlist '%s'. Please try again later", name)
	}
}

type DeletePlaylistCommand struct{ player Player }

func (c *DeletePlaylistCommand) Name() string        { return "delete_playlist" }
func (c *DeletePlaylistCommand) Description() string { return "Delete a saved playlist and its songs" }
func (c *DeletePlaylistCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description(), stringOpt("playlist", "Playlist name"))
}

func (c *DeletePlaylistCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(inv.Args, " "))
	if name == "" {
		return cc.Replyf("Usage: delete_playlist <playlist>")
	}
	if c.player.DeletePlaylist(ctx, cc.GuildID, name) {
		return cc.Replyf("Playlist deleted")
	}
	return cc.Replyf("Failed to delete the playlist. Please try again later")
}

type ListPlaylistsCommand struct{ lib Library }

func (c *ListPlaylistsCommand) Name() string        { return "get_playlists" }
func (c *ListPlaylistsCommand) Description() string { return "List the saved playlists" }
func (c *ListPlaylistsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *ListPlaylistsCommand) Run(_ context.Context, inv *cmd.Invocation) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}
	names := c.lib.ListPlaylists(cc.GuildID)
	if len(names) == 0 {
		return cc.Replyf("Failed to get playlists. Please try again later")
	}
	return cc.Replyf("%s", numbered("Here are the playlists:", names))
}

type ListTracksCommand struct{ lib Library }

func (c *ListTracksCommand) Name() string        { return "get_tracks_of_playlist" }
func (c *ListTracksCommand) Description() string { return "List the songs of a saved playlist" }
func (c *ListTracksCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description(), stringOpt("playlist", "Playlist name"))
}

func (c *ListTracksCommand) Run(_ context.Context, inv *cmd.Invocation) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(inv.Args, " "))
	if name == "" {
		return cc.Replyf("Usage: get_tracks_of_playlist <playlist>")
	}
	tracks := c.lib.ListTracks(cc.GuildID, name)
	if len(tracks) == 0 {
		return cc.Replyf("Failed to get tracks. Please try again later")
	}
	titles := make([]string, len(tracks))
	for i, t := range tracks {
		titles[i] = t.Title
	}
	return cc.Replyf("%s", numbered("Here are the tracks of a "+name+" playlist:", titles))
}
