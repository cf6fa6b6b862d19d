// Package httpapi serves a small read-only status API for rooms.
package httpapi

import (
	"context"
	"net/http"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Rooms is what the API reads from the coordinator.
type Rooms interface {
	State(ctx context.Context, room string) player.State
	Current(room string) (sources.Track, bool)
	Queue(ctx context.Context, room string) ([]sources.Track, error)
}

type RoomStatus struct {
	Room    string   `json:"room"`
	State   string   `json:"state"`
	Paused  bool     `json:"paused"`
	Current string   `json:"current,omitempty"`
	Queue   []string `json:"queue"`
}

func SetupRouter(rooms Rooms) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/rooms/:room", func(c *gin.Context) {
		room := c.Param("room")
		ctx := c.Request.Context()

		pending, err := rooms.Queue(ctx, room)
		if err != nil {
			log.Error().Str("module", "httpapi").Str("room", room).Err(err).Msg("read queue failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue store unavailable"})
			return
		}

		state := rooms.State(ctx, room)
		status := RoomStatus{
			Room:   room,
			State:  state.String(),
			Paused: state == player.StatePaused,
			Queue:  make([]string, 0, len(pending)),
		}
		if t, ok := rooms.Current(room); ok {
			status.Current = t.Title
		}
		for _, t := range pending {
			status.Queue = append(status.Queue, t.Title)
		}
		c.JSON(http.StatusOK, status)
	})

	log.Debug().Str("module", "httpapi").Msg("router setup")
	return r
}
