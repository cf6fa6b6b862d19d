// Package player coordinates playback per room: a FIFO queue, a
// play/pause/stop state machine, and cleanup of staged media.
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/music/blobstore"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/jobmgr"

	"github.com/rs/zerolog/log"
)

// QueueCategory is the blob category and Enqueue destination of the play queue.
const QueueCategory = "queue"

var (
	ErrNothingPlaying      = errors.New("nothing is playing")
	ErrNotPlaying          = errors.New("playback is not running")
	ErrNotPaused           = errors.New("playback is not paused")
	ErrInvalidPlaylistName = errors.New("invalid playlist name")
	ErrPlaylistEmpty       = errors.New("playlist is empty or does not exist")
	ErrNotInVoice          = errors.New("user is not in a voice channel")
	ErrRepository          = errors.New("playlist repository failed")
)

type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

type Config struct {
	PollInterval time.Duration
	ReapInterval time.Duration
	ReapWorkers  int
	EventBuffer  int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		ReapInterval: time.Minute,
		ReapWorkers:  4,
		EventBuffer:  32,
	}
}

// Deps are the collaborators a Coordinator drives. Jobs may be nil.
type Deps struct {
	Queue     queue.Store
	Blobs     blobstore.Store
	Resolver  Resolver
	Playlists Playlists
	Output    Output
	Jobs      *jobmgr.Manager
}

type Coordinator struct {
	queue     queue.Store
	blobs     blobstore.Store
	resolver  Resolver
	playlists Playlists
	output    Output
	jobs      *jobmgr.Manager
	cfg       Config

	mu     sync.Mutex
	rooms  map[string]*roomState
	events chan StatusEvent
}

// roomState is process-local bookkeeping. The queue and the paused flag live
// in the queue store.
type roomState struct {
	wake chan struct{}

	// mu serialises queue blob sweeps against in-flight enqueues.
	mu      sync.Mutex
	pending int

	infoMu  sync.Mutex
	channel string
	// current is set from pop until the render ends, so it also covers a
	// track whose audio is still being opened.
	current *sources.Track
	// gen advances on every stop, skip and reap. A track popped under an
	// older gen is not allowed to keep playing.
	gen uint64
}

func (r *roomState) textChannel() string {
	r.infoMu.Lock()
	defer r.infoMu.Unlock()
	return r.channel
}

// claim marks t as the room's current track and returns the gen it runs under.
func (r *roomState) claim(t *sources.Track) uint64 {
	r.infoMu.Lock()
	defer r.infoMu.Unlock()
	r.current = t
	return r.gen
}

func (r *roomState) release() {
	r.infoMu.Lock()
	r.current = nil
	r.infoMu.Unlock()
}

// halted reports whether a stop or skip arrived since gen was claimed.
func (r *roomState) halted(gen uint64) bool {
	r.infoMu.Lock()
	defer r.infoMu.Unlock()
	return r.gen != gen
}

func New(deps Deps, cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = def.ReapInterval
	}
	if cfg.ReapWorkers <= 0 {
		cfg.ReapWorkers = def.ReapWorkers
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	jobs := deps.Jobs
	if jobs == nil {
		jobs = jobmgr.NewManager(context.Background(), func(s string) {
			log.Debug().Str("module", "player").Str("job", s).Msg("job status")
		})
	}
	return &Coordinator{
		queue:     deps.Queue,
		blobs:     deps.Blobs,
		resolver:  deps.Resolver,
		playlists: deps.Playlists,
		output:    deps.Output,
		jobs:      jobs,
		cfg:       cfg,
		rooms:     make(map[string]*roomState),
		events:    make(chan StatusEvent, cfg.EventBuffer),
	}
}

// room returns the room's state, creating it. Only writers call it: play,
// enqueue and the loop. Readers use lookup so that querying arbitrary ids
// does not grow the map.
func (c *Coordinator) room(id string) *roomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomLocked(id)
}

func (c *Coordinator) roomLocked(id string) *roomState {
	r, ok := c.rooms[id]
	if !ok {
		r = &roomState{wake: make(chan struct{}, 1)}
		c.rooms[id] = r
	}
	return r
}

func (c *Coordinator) lookup(id string) (*roomState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[id]
	return r, ok
}

// forget drops the room's state once no loop, enqueue or play refers to it.
func (c *Coordinator) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[id]
	if !ok || c.jobs.Running(loopName(id)) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending > 0 {
		return
	}
	delete(c.rooms, id)
}

// wakeRoom nudges the room's loop to re-check state before the next poll tick.
func (c *Coordinator) wakeRoom(id string) {
	r, ok := c.lookup(id)
	if !ok {
		return
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// halt ends whatever the room is playing, including a popped track that has
// not reached the output yet.
func (c *Coordinator) halt(id string) {
	if r, ok := c.lookup(id); ok {
		r.infoMu.Lock()
		r.gen++
		r.infoMu.Unlock()
	}
	c.output.Stop(id)
	c.wakeRoom(id)
}

// busy reports whether a track is rendering or on its way to the output.
func (c *Coordinator) busy(id string) bool {
	if c.output.IsRendering(id) {
		return true
	}
	_, ok := c.Current(id)
	return ok
}

// ValidatePlaylistName rejects names play could mistake for a link, and the
// name reserved for the queue itself.
func ValidatePlaylistName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPlaylistName)
	}
	if name == QueueCategory {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidPlaylistName, name)
	}
	if domain, ok := sources.ContainsSourceDomain(name); ok {
		return fmt.Errorf("%w: using %s as part of a playlist name is not allowed", ErrInvalidPlaylistName, domain)
	}
	return nil
}

// Enqueue adds sourceText to destination, which is QueueCategory or a playlist
// name. Media URLs are resolved and staged in the blob store first; anything
// else is a playlist name whose tracks are pushed onto the queue in order.
// It returns the tracks that were added.
func (c *Coordinator) Enqueue(ctx context.Context, room, sourceText, destination string) ([]sources.Track, error) {
	sourceText = strings.TrimSpace(sourceText)
	destination = strings.TrimSpace(destination)
	toQueue := destination == QueueCategory

	if !toQueue {
		if err := ValidatePlaylistName(destination); err != nil {
			return nil, err
		}
	}

	if !c.resolver.IsMediaURL(sourceText) {
		if !toQueue {
			return nil, fmt.Errorf("%w: %q is not a media link", sources.ErrUnsupportedSource, sourceText)
		}
		return c.enqueuePlaylist(ctx, room, sourceText)
	}

	if toQueue {
		_, done := c.beginPending(room)
		defer done()
	}

	logger := log.With().Str("module", "player").Str("room", room).Str("destination", destination).Logger()

	audio, err := c.resolver.Resolve(ctx, sourceText)
	if err != nil {
		logger.Warn().Err(err).Str("url", sourceText).Msg("resolve failed")
		return nil, err
	}

	locator, err := c.blobs.Put(ctx, room, destination, audio.Data)
	if err != nil {
		logger.Error().Err(err).Msg("staging audio failed")
		return nil, err
	}

	track := sources.Track{
		Kind:        audio.Kind,
		Title:       audio.Title,
		Locator:     locator,
		OriginalURL: audio.URL,
	}

	if toQueue {
		if err := c.queue.Push(ctx, room, track); err != nil {
			c.discardBlob(ctx, locator)
			return nil, err
		}
	} else if !c.playlists.AddSong(room, destination, track) {
		c.discardBlob(ctx, locator)
		return nil, fmt.Errorf("%w: add to %q", ErrRepository, destination)
	}

	logger.Info().Str("title", track.Title).Str("locator", locator).Msg("track added")
	if toQueue {
		c.emitStatus(StatusEvent{Room: room, Status: StatusAdded, Track: &track, Count: 1})
	}
	return []sources.Track{track}, nil
}

func (c *Coordinator) enqueuePlaylist(ctx context.Context, room, name string) ([]sources.Track, error) {
	tracks := c.playlists.ListTracks(room, name)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrPlaylistEmpty, name)
	}
	if err := c.queue.Push(ctx, room, tracks...); err != nil {
		return nil, err
	}
	log.Info().Str("module", "player").Str("room", room).Str("playlist", name).Int("tracks", len(tracks)).Msg("playlist queued")
	c.emitStatus(StatusEvent{Room: room, Status: StatusAdded, Count: len(tracks)})
	return tracks, nil
}

// beginPending pins the room's state and holds off queue blob sweeps until
// the returned func is called.
func (c *Coordinator) beginPending(room string) (*roomState, func()) {
	c.mu.Lock()
	r := c.roomLocked(room)
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()
	c.mu.Unlock()
	return r, func() {
		r.mu.Lock()
		r.pending--
		r.mu.Unlock()
	}
}

func (c *Coordinator) discardBlob(ctx context.Context, locator string) {
	if err := c.blobs.DeletePrefix(ctx, locator); err != nil {
		log.Warn().Str("module", "player").Str("locator", locator).Err(err).Msg("discarding blob failed")
	}
}

// PlayRequest is a play command from a user.
type PlayRequest struct {
	Room           string
	VoiceChannelID string
	TextChannelID  string
	Source         string
}

// Play joins the user's voice channel if needed, enqueues the source and makes
// sure the room's loop runs.
func (c *Coordinator) Play(ctx context.Context, req PlayRequest) ([]sources.Track, error) {
	if req.VoiceChannelID == "" {
		return nil, ErrNotInVoice
	}

	r, done := c.beginPending(req.Room)
	defer done()
	if req.TextChannelID != "" {
		r.infoMu.Lock()
		r.channel = req.TextChannelID
		r.infoMu.Unlock()
	}

	if !c.output.Connected(req.Room) {
		if err := c.output.Connect(ctx, req.Room, req.VoiceChannelID); err != nil {
			return nil, fmt.Errorf("join voice channel: %w", err)
		}
		if err := c.queue.SetPaused(ctx, req.Room, false); err != nil {
			log.Warn().Str("module", "player").Str("room", req.Room).Err(err).Msg("reset paused flag failed")
		}
	}

	tracks, err := c.Enqueue(ctx, req.Room, req.Source, QueueCategory)
	if err != nil {
		return nil, err
	}
	c.EnsurePlaybackLoop(req.Room)
	return tracks, nil
}

// State reports the room's playback state.
func (c *Coordinator) State(ctx context.Context, room string) State {
	if !c.jobs.Running(loopName(room)) {
		return StateIdle
	}
	paused, err := c.queue.IsPaused(ctx, room)
	if err != nil {
		log.Warn().Str("module", "player").Str("room", room).Err(err).Msg("read paused flag failed")
	}
	if paused {
		return StatePaused
	}
	return StatePlaying
}

// Current returns the track being played, if any. A track counts from the
// moment the loop takes it off the queue.
func (c *Coordinator) Current(room string) (sources.Track, bool) {
	r, ok := c.lookup(room)
	if !ok {
		return sources.Track{}, false
	}
	r.infoMu.Lock()
	defer r.infoMu.Unlock()
	if r.current == nil {
		return sources.Track{}, false
	}
	return *r.current, true
}

// Queue returns the pending tracks of a room.
func (c *Coordinator) Queue(ctx context.Context, room string) ([]sources.Track, error) {
	return c.queue.List(ctx, room)
}

// Stop clears the queue, resets the paused flag and ends the current render.
// The loop notices at its next wake-up and returns the room to Idle.
func (c *Coordinator) Stop(ctx context.Context, room string) error {
	n, err := c.queue.Length(ctx, room)
	if err != nil {
		return err
	}
	if n == 0 && !c.busy(room) {
		return ErrNothingPlaying
	}

	if err := c.queue.Clear(ctx, room); err != nil {
		return err
	}
	if err := c.queue.SetPaused(ctx, room, false); err != nil {
		return err
	}
	c.halt(room)

	log.Info().Str("module", "player").Str("room", room).Int("dropped", n).Msg("stopped")
	c.emitStatus(StatusEvent{Room: room, Status: StatusStopped})
	return nil
}

// Skip ends the current render; the loop moves on to the next track, if any.
func (c *Coordinator) Skip(ctx context.Context, room string) error {
	n, err := c.queue.Length(ctx, room)
	if err != nil {
		return err
	}
	if n == 0 && !c.busy(room) {
		return ErrNothingPlaying
	}

	if err := c.queue.SetPaused(ctx, room, false); err != nil {
		return err
	}
	c.halt(room)

	log.Info().Str("module", "player").Str("room", room).Msg("skipped")
	c.emitStatus(StatusEvent{Room: room, Status: StatusSkipped})
	return nil
}

func (c *Coordinator) Pause(ctx context.Context, room string) error {
	if c.State(ctx, room) != StatePlaying {
		return ErrNotPlaying
	}
	if err := c.queue.SetPaused(ctx, room, true); err != nil {
		return err
	}
	c.output.Pause(room)

	log.Info().Str("module", "player").Str("room", room).Msg("paused")
	c.emitStatus(StatusEvent{Room: room, Status: StatusPaused})
	return nil
}

func (c *Coordinator) Resume(ctx context.Context, room string) error {
	if c.State(ctx, room) != StatePaused {
		return ErrNotPaused
	}
	if err := c.queue.SetPaused(ctx, room, false); err != nil {
		return err
	}
	c.output.Resume(room)
	c.wakeRoom(room)

	log.Info().Str("module", "player").Str("room", room).Msg("resumed")
	c.emitStatus(StatusEvent{Room: room, Status: StatusResumed})
	return nil
}

// DeletePlaylist removes a playlist and then its staged audio.
func (c *Coordinator) DeletePlaylist(ctx context.Context, room, name string) bool {
	if !c.playlists.DeletePlaylist(room, name) {
		return false
	}
	if err := c.blobs.DeletePrefix(ctx, blobstore.Prefix(room, name)); err != nil {
		log.Warn().Str("module", "player").Str("room", room).Str("playlist", name).Err(err).Msg("playlist blob cleanup failed")
	}
	return true
}

// Shutdown stops every loop and the reaper and waits for them.
func (c *Coordinator) Shutdown() {
	c.jobs.Shutdown()
}
