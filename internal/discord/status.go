package discord

import (
	"context"
	"fmt"

	"github.com/keshon/jukebox/internal/music/player"

	"github.com/rs/zerolog/log"
)

// forwardStatus posts coordinator events to the channel playback was requested from.
func (b *Bot) forwardStatus(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.events:
			if !ok {
				return
			}
			msg := statusMessage(ev)
			if msg == "" || ev.ChannelID == "" {
				continue
			}
			if _, err := b.dg.ChannelMessageSend(ev.ChannelID, msg); err != nil {
				log.Warn().Str("module", "discord").Str("room", ev.Room).Err(err).Msg("failed to post status")
			}
		}
	}
}

// statusMessage renders the events worth a chat message. Commands already
// answer for their own actions, so most events stay silent.
func statusMessage(ev player.StatusEvent) string {
	emoji := ev.Status.StringEmoji()
	switch ev.Status {
	case player.StatusPlaying:
		if ev.Track == nil {
			return ""
		}
		return fmt.Sprintf("%s Now playing: **%s**", emoji, ev.Track.Title)
	case player.StatusError:
		if ev.Track == nil {
			return ""
		}
		return fmt.Sprintf("%s Couldn't play %s, skipping", emoji, ev.Track.Title)
	case player.StatusLeft:
		return fmt.Sprintf("%s Left the voice channel, nobody was listening", emoji)
	case player.StatusFinished:
		return fmt.Sprintf("%s Queue finished", emoji)
	default:
		return ""
	}
}
