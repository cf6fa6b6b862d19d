package discord

import (
	"context"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	c, ok := b.registry.Get(data.Name)
	if !ok {
		log.Warn().Str("module", "discord").Str("command", data.Name).Msg("unknown command")
		return
	}

	// downloads can outlast the three second interaction deadline
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		log.Error().Str("module", "discord").Str("command", data.Name).Err(err).Msg("failed to defer response")
		return
	}

	user := interactionUser(i)
	cc := &command.Context{
		GuildID:        i.GuildID,
		GuildName:      guildName(s, i.GuildID),
		ChannelID:      i.ChannelID,
		ChannelName:    channelName(s, i.ChannelID),
		UserID:         user.ID,
		Username:       user.Username,
		VoiceChannelID: voiceChannelOf(s, i.GuildID, user.ID),
		Reply: func(msg string) error {
			_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: msg})
			return err
		},
	}

	var def *discordgo.ApplicationCommand
	if p, ok := cmd.Root(c).(command.SlashProvider); ok {
		def = p.SlashDefinition()
	}
	b.dispatch(c, interactionArgs(def, data.Options), cc)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, args, ok := parseMessage(b.prefix, m.Content)
	if !ok {
		return
	}
	c, ok := b.registry.Get(name)
	if !ok {
		return
	}

	cc := &command.Context{
		GuildID:        m.GuildID,
		GuildName:      guildName(s, m.GuildID),
		ChannelID:      m.ChannelID,
		ChannelName:    channelName(s, m.ChannelID),
		UserID:         m.Author.ID,
		Username:       m.Author.Username,
		VoiceChannelID: voiceChannelOf(s, m.GuildID, m.Author.ID),
		Reply: func(msg string) error {
			_, err := s.ChannelMessageSend(m.ChannelID, msg)
			return err
		},
	}
	b.dispatch(c, args, cc)
}

// dispatch runs c and reports failures to the user.
func (b *Bot) dispatch(c cmd.Command, args []string, cc *command.Context) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	err := c.Run(ctx, &cmd.Invocation{Args: args, Data: cc})
	if err == nil {
		return
	}
	log.Error().Str("module", "discord").Str("command", c.Name()).Err(err).Msg("command failed")
	if rerr := cc.Replyf("Error running command: %v", err); rerr != nil {
		log.Warn().Str("module", "discord").Err(rerr).Msg("failed to report command error")
	}
}

// parseMessage splits "<prefix><name> args..." into its parts.
func parseMessage(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// interactionArgs orders option values the way the command declares them.
func interactionArgs(def *discordgo.ApplicationCommand, opts []*discordgo.ApplicationCommandInteractionDataOption) []string {
	values := make(map[string]string, len(opts))
	order := make([]string, 0, len(opts))
	for _, o := range opts {
		if o.Type != discordgo.ApplicationCommandOptionString {
			continue
		}
		values[o.Name] = o.StringValue()
		order = append(order, o.Name)
	}

	if def != nil && len(def.Options) > 0 {
		order = order[:0]
		for _, d := range def.Options {
			if _, ok := values[d.Name]; ok {
				order = append(order, d.Name)
			}
		}
	}

	args := make([]string, 0, len(order))
	for _, name := range order {
		args = append(args, values[name])
	}
	return args
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}
