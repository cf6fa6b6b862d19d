package player

import (
	"context"
	"errors"
	"time"

	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/jobmgr"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func loopName(room string) string { return "loop:" + room }

// EnsurePlaybackLoop starts the room's loop unless one is attached. It reports
// whether a new loop was started.
func (c *Coordinator) EnsurePlaybackLoop(room string) bool {
	err := c.jobs.StartAsync(loopName(room), func(ctx context.Context, job *jobmgr.Job) error {
		return c.runLoop(ctx, job, room)
	})
	if errors.Is(err, jobmgr.ErrAlreadyRunning) {
		return false
	}
	if err != nil {
		log.Error().Str("module", "player").Str("room", room).Err(err).Msg("start loop failed")
		return false
	}
	return true
}

func (c *Coordinator) runLoop(ctx context.Context, job *jobmgr.Job, room string) error {
	logger := log.With().Str("module", "player").Str("room", room).Logger()
	logger.Debug().Msg("loop started")
	r := c.room(room)

	// a flag left over from an earlier session would stall the first track
	if err := c.queue.SetPaused(ctx, room, false); err != nil {
		logger.Warn().Err(err).Msg("reset paused flag failed")
	}

	for {
		if err := ctx.Err(); err != nil {
			c.output.Stop(room)
			return err
		}

		track, ok, err := c.queue.PopFront(ctx, room)
		if err != nil {
			logger.Error().Err(err).Msg("pop failed")
			if !c.sleep(ctx, r) {
				c.output.Stop(room)
				return ctx.Err()
			}
			continue
		}

		if !ok {
			c.drain(ctx, r, room, logger)
			released := c.jobs.Release(job, func() bool {
				n, err := c.queue.Length(ctx, room)
				return err == nil && n == 0
			})
			if released {
				logger.Debug().Msg("queue empty, loop finished")
				c.emitStatus(StatusEvent{Room: room, Status: StatusFinished})
				c.forget(room)
				return nil
			}
			continue
		}

		c.playTrack(ctx, r, room, track, logger)
	}
}

func (c *Coordinator) playTrack(ctx context.Context, r *roomState, room string, track sources.Track, logger zerolog.Logger) {
	logger = logger.With().Str("title", track.Title).Str("locator", track.Locator).Logger()

	gen := r.claim(&track)
	defer r.release()

	audio, err := c.blobs.Open(ctx, track.Locator)
	if err != nil {
		logger.Error().Err(err).Msg("open staged audio failed, skipping")
		c.emitStatus(StatusEvent{Room: room, Status: StatusError, Track: &track})
		return
	}
	if r.halted(gen) {
		audio.Close()
		logger.Debug().Msg("halted while opening audio")
		return
	}

	done, err := c.output.Play(ctx, room, track, audio)
	if err != nil {
		logger.Error().Err(err).Msg("render failed, skipping")
		c.emitStatus(StatusEvent{Room: room, Status: StatusError, Track: &track})
		return
	}
	// a halt that raced the start of the render may have found nothing to stop
	if r.halted(gen) {
		c.output.Stop(room)
		logger.Debug().Msg("halted while starting render")
		return
	}

	// pause may have been requested between tracks
	if paused, _ := c.queue.IsPaused(ctx, room); paused {
		c.output.Pause(room)
	}

	logger.Info().Msg("now playing")
	c.emitStatus(StatusEvent{Room: room, Status: StatusPlaying, Track: &track})

	c.await(ctx, r, room, done)
}

// await blocks while the render is in progress or the room is paused. Stop and
// skip take effect at the latest one poll interval after they are issued.
func (c *Coordinator) await(ctx context.Context, r *roomState, room string, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.output.Stop(room)
			return
		case <-done:
			done = nil
		case <-r.wake:
		case <-ticker.C:
		}

		if c.output.IsRendering(room) {
			continue
		}
		paused, err := c.queue.IsPaused(ctx, room)
		if err != nil {
			log.Warn().Str("module", "player").Str("room", room).Err(err).Msg("read paused flag failed")
			return
		}
		if !paused {
			return
		}
	}
}

// drain removes the room's staged queue audio once nothing can still refer to it.
func (c *Coordinator) drain(ctx context.Context, r *roomState, room string, logger zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending > 0 {
		return
	}
	if n, err := c.queue.Length(ctx, room); err != nil || n > 0 {
		return
	}
	if err := c.blobs.DeletePrefix(ctx, blobstore.Prefix(room, QueueCategory)); err != nil {
		logger.Warn().Err(err).Msg("queue blob cleanup failed")
	}
}

// sleep waits one poll interval. It returns false if ctx ended.
func (c *Coordinator) sleep(ctx context.Context, r *roomState) bool {
	t := time.NewTimer(c.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.wake:
		return true
	case <-t.C:
		return true
	}
}
