package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/storage"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// app holds the stores a command works on. The opened ones are closed in order.
type app struct {
	queue   queue.Store
	library *storage.Storage
	blobs   blobstore.Store
	timeout time.Duration
	closers []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

func withTimeout(a *app) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

// opener builds the app for a command invocation. Tests swap it out.
type opener func(ctx context.Context) (*app, error)

func openFromConfig(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{timeout: 10 * time.Second}

	lib, err := storage.New(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	a.library = lib
	a.closers = append(a.closers, lib.Close)

	if cfg.QueueBackend == "redis" {
		q, err := queue.NewRedis(ctx, queue.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.queue = q
	} else {
		q, err := queue.NewDatastore(cfg.QueuePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.queue = q
	}
	a.closers = append(a.closers, a.queue.Close)

	if cfg.BlobBackend == "s3" {
		a.blobs, err = blobstore.NewS3(ctx, cfg.S3Bucket, cfg.AWSRegion)
	} else {
		a.blobs, err = blobstore.NewFS(cfg.BlobDir)
	}
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newRootCommand(open opener) *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:           "jukebox-cli",
		Short:         "Inspect and repair jukebox queues and playlists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor {
			pterm.DisableColor()
		}
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
			a.Close()
		}
	}

	root.AddCommand(queueCommand())
	root.AddCommand(playlistsCommand())
	root.AddCommand(tracksCommand())
	return root
}

func main() {
	closer := logging.Setup(logging.Options{Level: "warn"})
	defer closer.Close()

	root := newRootCommand(openFromConfig)
	if err := root.ExecuteContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		closer.Close()
		os.Exit(1)
	}
}

func render(cmd *cobra.Command, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
