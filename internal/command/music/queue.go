package music

import (
	"context"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type QueueCommand struct{ player Player }

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "Show the current track and what is up next" }
func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *QueueCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}

	pending, err := c.player.Queue(ctx, cc.GuildID)
	if err != nil {
		return cc.Replyf("Failed to read the queue. Please try again later")
	}
	current, playing := c.player.Current(cc.GuildID)

	if !playing && len(pending) == 0 {
		return cc.Replyf("The queue is empty.")
	}

	header := "Up next:"
	if playing {
		header = "Now playing: " + current.Title + "\nUp next:"
	}
	if len(pending) == 0 {
		return cc.Replyf("%s nothing", header)
	}

	titles := make([]string, len(pending))
	for i, t := range pending {
		titles[i] = t.Title
	}
	return cc.Replyf("%s", numbered(header, titles))
}
