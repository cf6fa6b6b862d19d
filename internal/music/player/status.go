package player

import (
	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/rs/zerolog/log"
)

type PlayerStatus string

const (
	StatusPlaying  PlayerStatus = "Playing"
	StatusAdded    PlayerStatus = "Track(s) Added"
	StatusStopped  PlayerStatus = "Playback Stopped"
	StatusPaused   PlayerStatus = "Playback Paused"
	StatusResumed  PlayerStatus = "Playback Resumed"
	StatusSkipped  PlayerStatus = "Track Skipped"
	StatusFinished PlayerStatus = "Queue Finished"
	StatusLeft     PlayerStatus = "Left Empty Channel"
	StatusError    PlayerStatus = "Error"
)

func (status PlayerStatus) StringEmoji() string {
	m := map[PlayerStatus]string{
		StatusPlaying:  "▶️",
		StatusAdded:    "🎶",
		StatusStopped:  "⏹",
		StatusPaused:   "⏸",
		StatusResumed:  "▶️",
		StatusSkipped:  "⏭",
		StatusFinished: "🏁",
		StatusLeft:     "👋",
		StatusError:    "❌",
	}
	return m[status]
}

// StatusEvent is published on Events for each visible change in a room.
// ChannelID is the text channel playback was last requested from, if known.
type StatusEvent struct {
	Room      string
	ChannelID string
	Status    PlayerStatus
	Track     *sources.Track
	Count     int
}

// Events returns the status stream. Events are dropped when nobody keeps up.
func (c *Coordinator) Events() <-chan StatusEvent {
	return c.events
}

// emitStatus sends without blocking the caller.
func (c *Coordinator) emitStatus(ev StatusEvent) {
	if ev.ChannelID == "" {
		if r, ok := c.lookup(ev.Room); ok {
			ev.ChannelID = r.textChannel()
		}
	}
	select {
	case c.events <- ev:
	default:
		log.Debug().Str("module", "player").Str("room", ev.Room).Str("status", string(ev.Status)).Msg("status event dropped (channel full)")
	}
}
