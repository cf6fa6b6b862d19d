package player

import (
	"context"
	"time"

	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/pkg/jobmgr"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const reaperJob = "reaper"

// StartReaper runs RunReaper as a managed job.
func (c *Coordinator) StartReaper() error {
	return c.jobs.StartAsync(reaperJob, func(ctx context.Context, job *jobmgr.Job) error {
		c.RunReaper(ctx)
		return nil
	})
}

// RunReaper reaps idle rooms every ReapInterval until ctx is done.
func (c *Coordinator) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.ReapIdleRooms(ctx); n > 0 {
				log.Info().Str("module", "player").Int("rooms", n).Msg("reaped idle rooms")
			}
		}
	}
}

// ReapIdleRooms tears down every room where the bot is alone in voice. Rooms are
// handled concurrently and independently; it returns how many were reaped.
func (c *Coordinator) ReapIdleRooms(ctx context.Context) int {
	rooms := c.output.AloneRooms()
	if len(rooms) == 0 {
		return 0
	}

	p := pool.New().WithMaxGoroutines(c.cfg.ReapWorkers).WithContext(ctx)
	for _, room := range rooms {
		p.Go(func(ctx context.Context) error {
			c.reapRoom(ctx, room)
			return nil
		})
	}
	_ = p.Wait()
	return len(rooms)
}

func (c *Coordinator) reapRoom(ctx context.Context, room string) {
	logger := log.With().Str("module", "player").Str("room", room).Logger()

	// clear before stopping so the loop finds nothing left to pop
	if err := c.queue.Clear(ctx, room); err != nil {
		logger.Warn().Err(err).Msg("reap: clear queue failed")
	}
	if err := c.queue.SetPaused(ctx, room, false); err != nil {
		logger.Warn().Err(err).Msg("reap: reset paused flag failed")
	}
	c.halt(room)

	if err := c.output.Disconnect(room); err != nil {
		logger.Warn().Err(err).Msg("reap: disconnect failed")
	}

	r := c.room(room)
	r.mu.Lock()
	if r.pending == 0 {
		if err := c.blobs.DeletePrefix(ctx, blobstore.Prefix(room, QueueCategory)); err != nil {
			logger.Warn().Err(err).Msg("reap: blob cleanup failed")
		}
	}
	r.mu.Unlock()

	logger.Info().Msg("left idle voice channel")
	c.emitStatus(StatusEvent{Room: room, Status: StatusLeft})
}
