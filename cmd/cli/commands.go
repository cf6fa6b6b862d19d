package main

import (
	"fmt"
	"strconv"

	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/internal/music/player"

	"github.com/spf13/cobra"
)

func queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue commands",
	}
	cmd.AddCommand(queueShowCommand())
	cmd.AddCommand(queueClearCommand())
	return cmd
}

func queueShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <room>",
		Short: "List pending tracks of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			ctx, cancel := withTimeout(a)
			defer cancel()

			room := args[0]
			tracks, err := a.queue.List(ctx, room)
			if err != nil {
				return err
			}
			paused, err := a.queue.IsPaused(ctx, room)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "room %s: %d pending, paused=%t\n", room, len(tracks), paused)
			if len(tracks) == 0 {
				return nil
			}
			rows := make([][]string, len(tracks))
			for i, t := range tracks {
				rows[i] = []string{strconv.Itoa(i + 1), t.Title, t.Kind.String(), t.Locator}
			}
			return render(cmd, []string{"#", "TITLE", "SOURCE", "LOCATOR"}, rows)
		},
	}
}

func queueClearCommand() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "clear <room>",
		Short: "Empty a room's queue and reset its paused flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			ctx, cancel := withTimeout(a)
			defer cancel()

			room := args[0]
			if err := a.queue.Clear(ctx, room); err != nil {
				return err
			}
			if err := a.queue.SetPaused(ctx, room, false); err != nil {
				return err
			}
			if purge && a.blobs != nil {
				if err := a.blobs.DeletePrefix(ctx, blobstore.Prefix(room, player.QueueCategory)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room %s: queue cleared\n", room)
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge-media", false, "also delete the room's staged queue audio")
	return cmd
}

func playlistsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "playlists <room>",
		Short: "List saved playlists of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			names := a.library.ListPlaylists(args[0])
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no playlists")
				return nil
			}
			rows := make([][]string, len(names))
			for i, n := range names {
				rows[i] = []string{strconv.Itoa(i + 1), n, strconv.Itoa(len(a.library.ListTracks(args[0], n)))}
			}
			return render(cmd, []string{"#", "PLAYLIST", "TRACKS"}, rows)
		},
	}
}

func tracksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tracks <room> <playlist>",
		Short: "List the tracks of a saved playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			tracks := a.library.ListTracks(args[0], args[1])
			if len(tracks) == 0 {
				return fmt.Errorf("playlist %q is empty or does not exist", args[1])
			}
			rows := make([][]string, len(tracks))
			for i, t := range tracks {
				rows[i] = []string{strconv.Itoa(i + 1), t.Title, t.OriginalURL}
			}
			return render(cmd, []string{"#", "TITLE", "URL"}, rows)
		},
	}
}
