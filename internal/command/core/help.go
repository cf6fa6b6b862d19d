// Package core holds bot commands that are not about music.
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// HelpCommand lists every command in the registry.
type HelpCommand struct {
	registry *cmd.Registry
	prefix   string
}

func NewHelp(registry *cmd.Registry, prefix string) *HelpCommand {
	return &HelpCommand{registry: registry, prefix: prefix}
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Get a list of available commands" }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *HelpCommand) Run(_ context.Context, inv *cmd.Invocation) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}
	return cc.Replyf("%s", c.text())
}

func (c *HelpCommand) text() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, k := range c.registry.GetAll() {
		fmt.Fprintf(&b, "\n`%s%s` %s", c.prefix, k.Name(), k.Description())
	}
	return b.String()
}
