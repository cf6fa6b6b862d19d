package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	state   player.State
	current *sources.Track
	queue   []sources.Track
	err     error
}

func (f *fakeRooms) State(context.Context, string) player.State { return f.state }
func (f *fakeRooms) Current(string) (sources.Track, bool) {
	if f.current == nil {
		return sources.Track{}, false
	}
	return *f.current, true
}
func (f *fakeRooms) Queue(context.Context, string) ([]sources.Track, error) { return f.queue, f.err }

func get(t *testing.T, rooms Rooms, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	SetupRouter(rooms).ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := get(t, &fakeRooms{}, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRoomStatus(t *testing.T) {
	rooms := &fakeRooms{
		state:   player.StatePaused,
		current: &sources.Track{Title: "Now"},
		queue:   []sources.Track{{Title: "A"}, {Title: "B"}},
	}
	w := get(t, rooms, "/api/rooms/g1")
	require.Equal(t, http.StatusOK, w.Code)

	var got RoomStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, RoomStatus{
		Room:    "g1",
		State:   "paused",
		Paused:  true,
		Current: "Now",
		Queue:   []string{"A", "B"},
	}, got)
}

func TestIdleRoomHasEmptyQueue(t *testing.T) {
	w := get(t, &fakeRooms{}, "/api/rooms/g2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"room":"g2","state":"idle","paused":false,"queue":[]}`, w.Body.String())
}

func TestQueueFailureIsUnavailable(t *testing.T) {
	w := get(t, &fakeRooms{err: errors.New("redis down")}, "/api/rooms/g1")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
