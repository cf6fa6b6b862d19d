package music

import (
	"context"
	"errors"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// control runs a parameterless playback command and maps its outcome to a reply.
func control(ctx context.Context, inv *cmd.Invocation, do func(context.Context, string) error, ok string, refused error, refusedMsg string) error {
	cc, err := command.From(inv)
	if err != nil {
		return err
	}
	switch err := do(ctx, cc.GuildID); {
	case err == nil:
		return cc.Replyf("%s", ok)
	case errors.Is(err, refused):
		return cc.Replyf("%s", refusedMsg)
	default:
		return cc.Replyf("Something went wrong: %v", err)
	}
}

type StopCommand struct{ player Player }

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stop playback and clear the queue" }
func (c *StopCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *StopCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return control(ctx, inv, c.player.Stop,
		"Queue cleared and stopped.",
		player.ErrNothingPlaying, "The bot is not playing anything at the moment.")
}

type SkipCommand struct{ player Player }

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "Skip the current track" }
func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *SkipCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return control(ctx, inv, c.player.Skip,
		"Skipped the current track",
		player.ErrNothingPlaying, "There is no track currently playing")
}

type PauseCommand struct{ player Player }

func (c *PauseCommand) Name() string        { return "pause" }
func (c *PauseCommand) Description() string { return "Pause the current track" }
func (c *PauseCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *PauseCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return control(ctx, inv, c.player.Pause,
		"Music paused.",
		player.ErrNotPlaying, "There is no track currently playing.")
}

type ResumeCommand struct{ player Player }

func (c *ResumeCommand) Name() string        { return "resume" }
func (c *ResumeCommand) Description() string { return "Resume paused playback" }
func (c *ResumeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slash(c.Name(), c.Description())
}

func (c *ResumeCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return control(ctx, inv, c.player.Resume,
		"Music resumed.",
		player.ErrNotPaused, "Music is not paused.")
}
