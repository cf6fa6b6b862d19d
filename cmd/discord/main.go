package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/core"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/httpapi"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/keshon/jukebox/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	closer := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()

	log.Info().Str("module", "main").Msg("starting jukebox bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Str("module", "main").Err(err).Msg("bot stopped with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Str("module", "main").Msg("jukebox bot exited cleanly")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer store.Close()

	queues, err := openQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer queues.Close()

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return err
	}

	jobs := jobmgr.NewManager(ctx, func(s string) {
		log.Debug().Str("module", "jobs").Msg(s)
	})

	coord := player.New(player.Deps{
		Queue:     queues,
		Blobs:     blobs,
		Resolver:  source_resolver.NewDefault(cfg.Proxy, cfg.YtdlpPath),
		Playlists: store,
		Output:    stream.NewDiscordOutput(dg, cfg.FFmpegPath),
		Jobs:      jobs,
	}, player.Config{
		PollInterval: cfg.PollInterval,
		ReapInterval: cfg.ReapInterval,
	})
	defer coord.Shutdown()

	if err := coord.StartReaper(); err != nil {
		return err
	}

	registry := cmd.NewRegistry()
	mws := []cmd.Middleware{command.WithGuildOnly(), command.WithCommandLogger(store)}
	music.Register(registry, coord, store, mws...)
	command.Register(registry, mws, core.NewHelp(registry, cfg.CommandPrefix))

	if cfg.StatusAddr != "" {
		go func() {
			if err := httpapi.Run(ctx, cfg.StatusAddr, httpapi.SetupRouter(coord)); err != nil {
				log.Error().Str("module", "main").Err(err).Msg("status server exited")
			}
		}()
	}

	return discord.New(dg, registry, cfg.CommandPrefix, coord.Events()).Run(ctx)
}

func openQueue(ctx context.Context, cfg *config.Config) (queue.Store, error) {
	if cfg.QueueBackend == "redis" {
		return queue.NewRedis(ctx, queue.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return queue.NewDatastore(cfg.QueuePath)
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobBackend == "s3" {
		return blobstore.NewS3(ctx, cfg.S3Bucket, cfg.AWSRegion)
	}
	return blobstore.NewFS(cfg.BlobDir)
}
