// Package discord connects the command registry and the playback coordinator
// to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// commandTimeout bounds a single command, downloads included.
const commandTimeout = 3 * time.Minute

// Bot dispatches slash interactions and prefixed messages to commands and posts
// playback status into text channels.
type Bot struct {
	dg       *discordgo.Session
	registry *cmd.Registry
	prefix   string
	events   <-chan player.StatusEvent

	ctx context.Context
}

// New creates a bot over an unopened session. events may be nil.
func New(dg *discordgo.Session, registry *cmd.Registry, prefix string, events <-chan player.StatusEvent) *Bot {
	return &Bot{
		dg:       dg,
		registry: registry,
		prefix:   prefix,
		events:   events,
		ctx:      context.Background(),
	}
}

// Run opens the session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onMessageCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	if b.events != nil {
		go b.forwardStatus(ctx)
	}

	<-ctx.Done()
	log.Info().Str("module", "discord").Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		b.registerCommands(s, g.ID)
	}
	log.Info().Str("module", "discord").Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Info().Str("module", "discord").Str("guild", g.ID).Str("name", g.Name).Msg("guild available")
	b.registerCommands(s, g.ID)
}

// registerCommands replaces the guild's slash commands with the registry's.
func (b *Bot) registerCommands(s *discordgo.Session, guildID string) {
	if s.State == nil || s.State.User == nil {
		return
	}
	defs := command.SlashDefinitions(b.registry)
	for _, d := range defs {
		if d.Type == 0 {
			d.Type = discordgo.ChatApplicationCommand
		}
	}
	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, defs); err != nil {
		log.Error().Str("module", "discord").Str("guild", guildID).Err(err).Msg("failed to register slash commands")
		return
	}
	log.Debug().Str("module", "discord").Str("guild", guildID).Int("commands", len(defs)).Msg("slash commands registered")
}

// voiceChannelOf returns the voice channel the user is in, or "".
func voiceChannelOf(s *discordgo.Session, guildID, userID string) string {
	if s.State == nil || guildID == "" {
		return ""
	}
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func guildName(s *discordgo.Session, guildID string) string {
	if s.State == nil || guildID == "" {
		return ""
	}
	if g, err := s.State.Guild(guildID); err == nil {
		return g.Name
	}
	return ""
}

func channelName(s *discordgo.Session, channelID string) string {
	if s.State == nil {
		return ""
	}
	if c, err := s.State.Channel(channelID); err == nil {
		return c.Name
	}
	return ""
}
