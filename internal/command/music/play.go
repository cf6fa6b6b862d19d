package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type PlayCommand struct {
	player Player
}

func (c *PlayCommand) Name() string { return "play" }
func (c *PlayCommand) Description() string {
	return "Play a YouTube or SoundCloud link, or queue a saved playlist"
}

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description(),
		stringOpt("input", "Link or playlist name"))
}

func (c *PlayCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}
	input := strings.TrimSpace(strings.Join(inv.Args, " "))
	if input == "" {
		return cc.Replyf("Usage: play <link or playlist name>")
	}

	tracks, err := c.player.Play(ctx, player.PlayRequest{
		Room:           cc.GuildID,
		VoiceChannelID: cc.VoiceChannelID,
		TextChannelID:  cc.ChannelID,
		Source:         input,
	})
	if err != nil {
		return cc.Replyf("%s", playError(input, err))
	}

	if len(tracks) == 1 {
		return cc.Replyf("%s added to queue", tracks[0].Title)
	}
	return cc.Replyf("Playlist %s: %d tracks added to queue", input, len(tracks))
}

func playError(input string, err error) string {
	switch {
	case errors.Is(err, player.ErrNotInVoice):
		return "Join a voice channel first."
	case errors.Is(err, player.ErrPlaylistEmpty):
		if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
			return "Only YouTube and SoundCloud links are supported."
		}
		return "Playlist is empty, please check your spelling"
	case errors.Is(err, sources.ErrDownloadFailed), errors.Is(err, sources.ErrUnsupportedSource):
		return "Couldn't download a song, it looks like your link is broken"
	case errors.Is(err, blobstore.ErrStorage):
		return "Couldn't store the song. Please try again later"
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
