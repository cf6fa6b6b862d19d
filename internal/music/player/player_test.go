package player

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/jukebox/datastore"
	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/storage"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	poll    = 10 * time.Millisecond
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

type render struct {
	done   chan struct{}
	once   sync.Once
	paused bool
}

func (r *render) end() { r.once.Do(func() { close(r.done) }) }

type fakeOutput struct {
	mu           sync.Mutex
	auto         time.Duration
	connected    map[string]string
	current      map[string]*render
	played       map[string][]string
	alone        []string
	disconnected map[string]int
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{
		connected:    map[string]string{},
		current:      map[string]*render{},
		played:       map[string][]string{},
		disconnected: map[string]int{},
	}
}

func (o *fakeOutput) Connect(ctx context.Context, room, channelID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connected[room] = channelID
	return nil
}

func (o *fakeOutput) Connected(room string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.connected[room]
	return ok
}

func (o *fakeOutput) Play(ctx context.Context, room string, track sources.Track, audio io.ReadCloser) (<-chan struct{}, error) {
	data, err := io.ReadAll(audio)
	audio.Close()
	if err != nil {
		return nil, err
	}
	if string(data) != track.Title {
		return nil, fmt.Errorf("staged audio %q does not belong to %q", data, track.Title)
	}

	r := &render{done: make(chan struct{})}
	o.mu.Lock()
	o.current[room] = r
	o.played[room] = append(o.played[room], track.Title)
	auto := o.auto
	o.mu.Unlock()

	if auto > 0 {
		go func() {
			time.Sleep(auto)
			o.end(room, r)
		}()
	}
	return r.done, nil
}

func (o *fakeOutput) end(room string, r *render) {
	o.mu.Lock()
	if o.current[room] == r {
		delete(o.current, room)
	}
	o.mu.Unlock()
	r.end()
}

// finish ends the current render as if the track played to completion.
func (o *fakeOutput) finish(room string) {
	o.mu.Lock()
	r := o.current[room]
	o.mu.Unlock()
	if r != nil {
		o.end(room, r)
	}
}

func (o *fakeOutput) IsRendering(room string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.current[room]
	return ok
}

func (o *fakeOutput) Pause(room string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.current[room]; ok {
		r.paused = true
		return true
	}
	return false
}

func (o *fakeOutput) Resume(room string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.current[room]; ok {
		r.paused = false
		return true
	}
	return false
}

func (o *fakeOutput) Stop(room string) { o.finish(room) }

func (o *fakeOutput) Disconnect(room string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.connected, room)
	o.disconnected[room]++
	return nil
}

func (o *fakeOutput) AloneRooms() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.alone...)
}

func (o *fakeOutput) playedIn(room string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.played[room]...)
}

type fakeResolver struct {
	calls atomic.Int32
}

func (f *fakeResolver) IsMediaURL(input string) bool {
	_, ok := sources.ContainsSourceDomain(input)
	return ok
}

// Resolve uses the last path element as the title.
func (f *fakeResolver) Resolve(ctx context.Context, url string) (sources.Audio, error) {
	f.calls.Add(1)
	title := url[strings.LastIndex(url, "/")+1:]
	return sources.Audio{Kind: sources.KindYouTube, Title: title, URL: url, Data: []byte(title)}, nil
}

type harness struct {
	c         *Coordinator
	out       *fakeOutput
	res       *fakeResolver
	queue     queue.Store
	blobs     blobstore.Store
	playlists *storage.Storage
}

// gatedBlobs holds every Open until gate is closed, announcing it on opening.
type gatedBlobs struct {
	blobstore.Store
	opening chan string
	gate    chan struct{}
}

func newGatedBlobs() *gatedBlobs {
	return &gatedBlobs{opening: make(chan string, 1), gate: make(chan struct{})}
}

func (g *gatedBlobs) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	g.opening <- locator
	<-g.gate
	return g.Store.Open(ctx, locator)
}

func (g *gatedBlobs) waitOpening(t *testing.T) {
	t.Helper()
	select {
	case <-g.opening:
	case <-time.After(waitFor):
		t.Fatal("loop never opened staged audio")
	}
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test wrap the blob store the coordinator reads from.
func newHarnessWith(t *testing.T, wrap func(blobstore.Store) blobstore.Store) *harness {
	t.Helper()

	cfg := datastore.DefaultConfig(filepath.Join(t.TempDir(), "state.json"))
	cfg.AutoSaveInterval = 0
	ds, err := datastore.NewWithConfig(cfg)
	require.NoError(t, err)

	blobs, err := blobstore.NewFSWith(afero.NewMemMapFs(), "media")
	require.NoError(t, err)

	h := &harness{
		out:       newFakeOutput(),
		res:       &fakeResolver{},
		queue:     queue.NewDatastoreWith(ds),
		blobs:     blobs,
		playlists: storage.NewWith(ds),
	}
	coordBlobs := h.blobs
	if wrap != nil {
		coordBlobs = wrap(h.blobs)
	}
	h.c = New(Deps{
		Queue:     h.queue,
		Blobs:     coordBlobs,
		Resolver:  h.res,
		Playlists: h.playlists,
		Output:    h.out,
	}, Config{PollInterval: poll, ReapInterval: time.Hour, EventBuffer: 256})

	t.Cleanup(func() {
		h.c.Shutdown()
		ds.Close()
	})
	return h
}

func url(title string) string { return "https://www.youtube.com/watch/" + title }

func (h *harness) enqueue(t *testing.T, room string, titles ...string) {
	t.Helper()
	for _, title := range titles {
		_, err := h.c.Enqueue(context.Background(), room, url(title), QueueCategory)
		require.NoError(t, err)
	}
}

func (h *harness) length(t *testing.T, room string) int {
	t.Helper()
	n, err := h.queue.Length(context.Background(), room)
	require.NoError(t, err)
	return n
}

func (h *harness) paused(t *testing.T, room string) bool {
	t.Helper()
	p, err := h.queue.IsPaused(context.Background(), room)
	require.NoError(t, err)
	return p
}

func (h *harness) blobCount(t *testing.T, room, category string) int {
	t.Helper()
	keys, err := h.blobs.List(context.Background(), blobstore.Prefix(room, category))
	require.NoError(t, err)
	return len(keys)
}

func (h *harness) roomCount() int {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return len(h.c.rooms)
}

func (h *harness) waitPlayed(t *testing.T, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.out.playedIn(room)) == n }, waitFor, tick)
}

func (h *harness) waitState(t *testing.T, room string, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.c.State(context.Background(), room) == s }, waitFor, tick)
}

func TestPlaybackFollowsPushOrder(t *testing.T) {
	h := newHarness(t)
	h.out.auto = 3 * time.Millisecond

	titles := []string{"a", "b", "c", "d", "e"}
	h.enqueue(t, "g", titles...)
	require.True(t, h.c.EnsurePlaybackLoop("g"))

	h.waitPlayed(t, "g", len(titles))
	h.waitState(t, "g", StateIdle)
	assert.Equal(t, titles, h.out.playedIn("g"))
}

func TestSingleTrackScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tracks, err := h.c.Enqueue(ctx, "g", url("X"), QueueCategory)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "X", tracks[0].Title)
	assert.Equal(t, 1, h.length(t, "g"))
	assert.Equal(t, StateIdle, h.c.State(ctx, "g"))

	require.True(t, h.c.EnsurePlaybackLoop("g"))
	assert.Equal(t, StatePlaying, h.c.State(ctx, "g"))
	h.waitPlayed(t, "g", 1)

	cur, ok := h.c.Current("g")
	require.True(t, ok)
	assert.Equal(t, "X", cur.Title)

	h.out.finish("g")
	h.waitState(t, "g", StateIdle)
	assert.Zero(t, h.blobCount(t, "g", QueueCategory))
}

func TestOnlyOneLoopPerRoom(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "g", "a", "b")

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.c.EnsurePlaybackLoop("g") {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	h.waitPlayed(t, "g", 1)
	time.Sleep(5 * poll)
	assert.Equal(t, []string{"a"}, h.out.playedIn("g"))
}

func TestStopClearsQueueAndPausedFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, "g", "a", "b", "c")
	h.c.EnsurePlaybackLoop("g")
	h.waitPlayed(t, "g", 1)
	require.NoError(t, h.c.Pause(ctx, "g"))
	require.True(t, h.paused(t, "g"))

	require.NoError(t, h.c.Stop(ctx, "g"))

	assert.Equal(t, 0, h.length(t, "g"))
	assert.False(t, h.paused(t, "g"))
	h.waitState(t, "g", StateIdle)
	assert.Equal(t, []string{"a"}, h.out.playedIn("g"))
	assert.Zero(t, h.blobCount(t, "g", QueueCategory))
}

func TestStopTakesEffectWithinAPollInterval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, "g", "a")
	h.c.EnsurePlaybackLoop("g")
	h.waitPlayed(t, "g", 1)

	start := time.Now()
	require.NoError(t, h.c.Stop(ctx, "g"))
	h.waitState(t, "g", StateIdle)
	assert.Less(t, time.Since(start), 2*poll+100*time.Millisecond)
}

func TestStopWhileAudioIsOpeningPreventsPlayback(t *testing.T) {
	gated := newGatedBlobs()
	h := newHarnessWith(t, func(s blobstore.Store) blobstore.Store {
		gated.Store = s
		return gated
	})
	ctx := context.Background()

	h.enqueue(t, "g", "a")
	require.True(t, h.c.EnsurePlaybackLoop("g"))
	gated.waitOpening(t)

	// popped but not yet rendering
	assert.Zero(t, h.length(t, "g"))
	assert.False(t, h.out.IsRendering("g"))
	cur, ok := h.c.Current("g")
	require.True(t, ok)
	assert.Equal(t, "a", cur.Title)

	require.NoError(t, h.c.Stop(ctx, "g"))
	close(gated.gate)

	h.waitState(t, "g", StateIdle)
	time.Sleep(5 * poll)
	assert.Empty(t, h.out.playedIn("g"))
	assert.False(t, h.out.IsRendering("g"))
}

func TestSkipWhileAudioIsOpeningMovesToNextTrack(t *testing.T) {
	gated := newGatedBlobs()
	h := newHarnessWith(t, func(s blobstore.Store) blobstore.Store {
		gated.Store = s
		return gated
	})
	ctx := context.Background()

	h.enqueue(t, "g", "a", "b")
	require.True(t, h.c.EnsurePlaybackLoop("g"))
	gated.waitOpening(t)

	require.NoError(t, h.c.Skip(ctx, "g"))
	close(gated.gate)

	h.waitPlayed(t, "g", 1)
	assert.Equal(t, []string{"b"}, h.out.playedIn("g"))
	cur, ok := h.c.Current("g")
	require.True(t, ok)
	assert.Equal(t, "b", cur.Title)
}

func TestReadsOnUnknownRoomsKeepNoState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		room := fmt.Sprintf("unknown-%d", i)
		_, ok := h.c.Current(room)
		assert.False(t, ok)
		assert.Equal(t, StateIdle, h.c.State(ctx, room))
		assert.ErrorIs(t, h.c.Stop(ctx, room), ErrNothingPlaying)
		assert.ErrorIs(t, h.c.Skip(ctx, room), ErrNothingPlaying)
		assert.ErrorIs(t, h.c.Pause(ctx, room), ErrNotPlaying)
		assert.ErrorIs(t, h.c.Resume(ctx, room), ErrNotPaused)
	}
	assert.Zero(t, h.roomCount())
}

func TestRoomStateIsDroppedWhenLoopFinishes(t *testing.T) {
	h := newHarness(t)
	h.out.auto = 3 * time.Millisecond

	h.enqueue(t, "g", "a", "b")
	assert.Equal(t, 1, h.roomCount())
	require.True(t, h.c.EnsurePlaybackLoop("g"))

	h.waitPlayed(t, "g", 2)
	h.waitState(t, "g", StateIdle)
	require.Eventually(t, func() bool { return h.roomCount() == 0 }, waitFor, tick)

	h.enqueue(t, "g", "c")
	require.True(t, h.c.EnsurePlaybackLoop("g"))
	h.waitPlayed(t, "g", 3)
}

func TestPauseResumeKeepsPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, "g", "a", "b", "c")
	h.c.EnsurePlaybackLoop("g")
	h.waitPlayed(t, "g", 1)

	before, err := h.c.Queue(ctx, "g")
	require.NoError(t, err)

	require.NoError(t, h.c.Pause(ctx, "g"))
	assert.Equal(t, StatePaused, h.c.State(ctx, "g"))
	require.NoError(t, h.c.Resume(ctx, "g"))
	assert.Equal(t, StatePlaying, h.c.State(ctx, "g"))

	after, err := h.c.Queue(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	time.Sleep(3 * poll)
	assert.Equal(t, []string{"a"}, h.out.playedIn("g"))

	h.out.finish("g")
	h.waitPlayed(t, "g", 2)
	h.out.finish("g")
	h.waitPlayed(t, "g", 3)
	h.out.finish("g")
	h.waitState(t, "g", StateIdle)
	assert.Equal(t, []string{"a", "b", "c"}, h.out.playedIn("g"))
}

func TestPausedLoopDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, "g", "a", "b")
	h.c.EnsurePlaybackLoop("g")
	h.waitPlayed(t, "g", 1)
	require.NoError(t, h.c.Pause(ctx, "g"))

	// the render ending on its own must not start the next track while paused
	h.out.finish("g")
	time.Sleep(5 * poll)
	assert.Equal(t, []string{"a"}, h.out.playedIn("g"))

	require.NoError(t, h.c.Resume(ctx, "g"))
	h.waitPlayed(t, "g", 2)
}

func TestSkipFromPausedAdvancesOneTrack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, "g", "a", "b", "c")
	h.c.EnsurePlaybackLoop("g")
	h.waitPlayed(t, "g", 1)
	require.NoError(t, h.c.Pause(ctx, "g"))

	require.NoError(t, h.c.Skip(ctx, "g"))

	h.waitPlayed(t, "g", 2)
	assert.Equal(t, []string{"a", "b"}, h.out.playedIn("g"))
	assert.Equal(t, StatePlaying, h.c.State(ctx, "g"))
	assert.False(t, h.paused(t, "g"))
	assert.Equal(t, 1, h.length(t, "g"))
}

func TestCommandsOnIdleRoomAreRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.c.Stop(ctx, "g"), ErrNothingPlaying)
	assert.ErrorIs(t, h.c.Skip(ctx, "g"), ErrNothingPlaying)
	assert.ErrorIs(t, h.c.Pause(ctx, "g"), ErrNotPlaying)
	assert.ErrorIs(t, h.c.Resume(ctx, "g"), ErrNotPaused)
}

func TestResumeRequiresPaused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, "g", "a")
	h.c.EnsurePlaybackLoop("g")
	h.waitPlayed(t, "g", 1)

	assert.ErrorIs(t, h.c.Resume(ctx, "g"), ErrNotPaused)
	require.NoError(t, h.c.Pause(ctx, "g"))
	assert.ErrorIs(t, h.c.Pause(ctx, "g"), ErrNotPlaying)
}

func TestReapOnlyTouchesAloneRooms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, room := range []string{"a", "b"} {
		require.NoError(t, h.out.Connect(ctx, room, "voice-"+room))
		h.enqueue(t, room, room+"1", room+"2")
		h.c.EnsurePlaybackLoop(room)
		h.waitPlayed(t, room, 1)
	}
	require.NoError(t, h.c.Pause(ctx, "a"))
	h.out.alone = []string{"a"}

	assert.Equal(t, 1, h.c.ReapIdleRooms(ctx))

	assert.Equal(t, 0, h.length(t, "a"))
	assert.False(t, h.paused(t, "a"))
	assert.False(t, h.out.Connected("a"))
	assert.Zero(t, h.blobCount(t, "a", QueueCategory))
	h.waitState(t, "a", StateIdle)

	assert.Equal(t, 1, h.length(t, "b"))
	assert.True(t, h.out.Connected("b"))
	assert.True(t, h.out.IsRendering("b"))
	assert.Equal(t, 2, h.blobCount(t, "b", QueueCategory))
	assert.Equal(t, StatePlaying, h.c.State(ctx, "b"))
}

func TestPlaylistFanOutKeepsOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	titles := []string{"p1", "p2", "p3", "p4"}
	for _, title := range titles {
		_, err := h.c.Enqueue(ctx, "g", url(title), "favs")
		require.NoError(t, err)
	}
	assert.Equal(t, 4, h.blobCount(t, "g", "favs"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.c.Enqueue(ctx, "other", url(fmt.Sprintf("o%d", i)), QueueCategory)
			assert.NoError(t, err)
		}(i)
	}

	added, err := h.c.Enqueue(ctx, "g", "favs", QueueCategory)
	require.NoError(t, err)
	wg.Wait()

	assert.Len(t, added, len(titles))
	queued, err := h.c.Queue(ctx, "g")
	require.NoError(t, err)
	var got []string
	for _, tr := range queued {
		got = append(got, tr.Title)
	}
	assert.Equal(t, titles, got)
	assert.Equal(t, 5, h.length(t, "other"))
}

func TestAddSongThenListTracks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	added, err := h.c.Enqueue(ctx, "g", url("song"), "favs")
	require.NoError(t, err)
	require.Len(t, added, 1)

	tracks := h.playlists.ListTracks("g", "favs")
	require.Len(t, tracks, 1)
	assert.Equal(t, "song", tracks[0].Title)
	assert.Equal(t, added[0].Locator, tracks[0].Locator)
	assert.Equal(t, 0, h.length(t, "g"))
}

func TestPlaylistNameWithSourceDomainIsRejectedBeforeResolve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, name := range []string{"my youtube.com mix", "soundcloud.com", " "} {
		_, err := h.c.Enqueue(ctx, "g", url("song"), name)
		assert.ErrorIs(t, err, ErrInvalidPlaylistName, name)
	}
	assert.Zero(t, h.res.calls.Load())
	keys, err := h.blobs.List(ctx, blobstore.RoomPrefix("g"))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestUnknownPlaylistIsReported(t *testing.T) {
	h := newHarness(t)
	_, err := h.c.Enqueue(context.Background(), "g", "nothing here", QueueCategory)
	assert.ErrorIs(t, err, ErrPlaylistEmpty)
}

func TestDeletePlaylistPurgesItsBlobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.c.Enqueue(ctx, "g", url("a"), "favs")
	require.NoError(t, err)
	_, err = h.c.Enqueue(ctx, "g", url("b"), "keep")
	require.NoError(t, err)

	assert.True(t, h.c.DeletePlaylist(ctx, "g", "favs"))
	assert.True(t, h.c.DeletePlaylist(ctx, "g", "favs"), "deleting again is not a failure")
	assert.Zero(t, h.blobCount(t, "g", "favs"))
	assert.Equal(t, 1, h.blobCount(t, "g", "keep"))
}

func TestPlayJoinsVoiceAndStartsLoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.c.Play(ctx, PlayRequest{Room: "g", Source: url("a")})
	assert.ErrorIs(t, err, ErrNotInVoice)

	require.NoError(t, h.queue.SetPaused(ctx, "g", true))

	tracks, err := h.c.Play(ctx, PlayRequest{Room: "g", VoiceChannelID: "v", TextChannelID: "t", Source: url("a")})
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.True(t, h.out.Connected("g"))
	h.waitPlayed(t, "g", 1)
	assert.Equal(t, StatePlaying, h.c.State(ctx, "g"))

	h.out.finish("g")
	h.waitState(t, "g", StateIdle)

	_, err = h.c.Play(ctx, PlayRequest{Room: "g", VoiceChannelID: "v", Source: url("b")})
	require.NoError(t, err)
	h.waitPlayed(t, "g", 2)
}

func TestStatusEventsCarryTextChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.c.Play(ctx, PlayRequest{Room: "g", VoiceChannelID: "v", TextChannelID: "text", Source: url("a")})
	require.NoError(t, err)

	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-h.c.Events():
			if ev.Status != StatusPlaying {
				continue
			}
			assert.Equal(t, "text", ev.ChannelID)
			require.NotNil(t, ev.Track)
			assert.Equal(t, "a", ev.Track.Title)
			return
		case <-deadline:
			t.Fatal("no playing event")
		}
	}
}
