// Package command holds what every bot command shares: the request context the
// Discord adapter hands over, the slash definition hook and the middlewares.
package command

import (
	"errors"
	"fmt"

	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

var ErrNoContext = errors.New("invocation carries no command context")

// Context describes who issued a command and where. The adapter fills it for
// both slash interactions and prefixed chat messages.
type Context struct {
	GuildID     string
	GuildName   string
	ChannelID   string
	ChannelName string
	UserID      string
	Username    string

	// VoiceChannelID is the voice channel the user sits in, empty if none.
	VoiceChannelID string

	Reply func(msg string) error
}

// Replyf formats and sends a reply. A nil Reply swallows the message.
func (c *Context) Replyf(format string, args ...any) error {
	if c.Reply == nil {
		return nil
	}
	return c.Reply(fmt.Sprintf(format, args...))
}

// From extracts the Context an adapter stored in inv.Data.
func From(inv *cmd.Invocation) (*Context, error) {
	if inv == nil {
		return nil, ErrNoContext
	}
	c, ok := inv.Data.(*Context)
	if !ok || c == nil {
		return nil, ErrNoContext
	}
	return c, nil
}

// SlashProvider is implemented by commands that register as slash commands.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// Register wraps every command with mws and adds it to reg.
func Register(reg *cmd.Registry, mws []cmd.Middleware, cmds ...cmd.Command) {
	for _, c := range cmds {
		reg.Register(cmd.Apply(c, mws...))
	}
}

// SlashDefinitions collects the definitions of all slash-capable commands in reg.
func SlashDefinitions(reg *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.GetAll() {
		if p, ok := cmd.Root(c).(SlashProvider); ok {
			defs = append(defs, p.SlashDefinition())
		}
	}
	return defs
}
