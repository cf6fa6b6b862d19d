package command

import (
	"context"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/rs/zerolog/log"
)

// HistoryRecorder keeps the per-guild command history.
type HistoryRecorder interface {
	AppendCommandToHistory(guildID string, rec storage.CommandHistoryRecord) error
}

// WithGuildOnly refuses commands issued outside a guild, e.g. in DMs.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			cc, err := From(inv)
			if err != nil {
				return err
			}
			if cc.GuildID == "" {
				return cc.Replyf("This command only works in a server.")
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger logs each run and appends it to the guild's history.
// history may be nil.
func WithCommandLogger(history HistoryRecorder) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			cc, cerr := From(inv)
			if cerr != nil {
				return err
			}

			ev := log.Info()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("module", "command").
				Str("command", c.Name()).
				Str("guild", cc.GuildID).
				Str("user", cc.Username).
				Strs("args", inv.Args).
				Dur("took", time.Since(start)).
				Msg("command executed")

			if history == nil || cc.GuildID == "" {
				return err
			}
			rec := storage.CommandHistoryRecord{
				ChannelID:   cc.ChannelID,
				ChannelName: cc.ChannelName,
				GuildName:   cc.GuildName,
				UserID:      cc.UserID,
				Username:    cc.Username,
				Command:     c.Name(),
				Param:       strings.Join(inv.Args, " "),
				Datetime:    time.Now(),
			}
			if herr := history.AppendCommandToHistory(cc.GuildID, rec); herr != nil {
				log.Warn().Str("module", "command").Str("command", c.Name()).Err(herr).Msg("failed to record command history")
			}
			return err
		})
	}
}
