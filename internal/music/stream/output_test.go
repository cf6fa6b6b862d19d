package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct {
	channel      string
	send         chan []byte
	mu           sync.Mutex
	disconnected bool
}

func (f *fakeVoice) ChannelID() string    { return f.channel }
func (f *fakeVoice) Send() chan<- []byte  { return f.send }
func (f *fakeVoice) Speaking(bool) error  { return nil }
func (f *fakeVoice) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

// passEncoder returns the first two bytes of each frame.
type passEncoder struct{}

func (passEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	return []byte{byte(pcm[0]), byte(pcm[0] >> 8)}, nil
}

func identityDecode(ctx context.Context, in io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(in), nil
}

type setup struct {
	out     *DiscordOutput
	voice   *fakeVoice
	members map[string]int
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	s := &setup{
		voice:   &fakeVoice{channel: "v1", send: make(chan []byte)},
		members: map[string]int{},
	}
	s.out = newOutput(
		func(guildID, channelID string) (voiceConn, error) {
			s.voice.channel = channelID
			return s.voice, nil
		},
		func(guildID, channelID string) (int, error) {
			n, ok := s.members[guildID]
			if !ok {
				return 0, errors.New("unknown guild")
			}
			return n, nil
		},
		identityDecode,
		func() (encoder, error) { return passEncoder{}, nil },
	)
	return s
}

func frames(n int) io.ReadCloser {
	buf := make([]byte, 0, n*maxBytes)
	for i := 0; i < n; i++ {
		frame := make([]byte, maxBytes)
		frame[0] = byte(i + 1)
		buf = append(buf, frame...)
	}
	return io.NopCloser(bytes.NewReader(buf))
}

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(time.Second):
		t.Fatal("no frame sent")
		return nil
	}
}

func TestPlaySendsEveryFrame(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	require.NoError(t, s.out.Connect(ctx, "g", "v1"))

	done, err := s.out.Play(ctx, "g", sources.Track{Title: "x"}, frames(3))
	require.NoError(t, err)
	assert.True(t, s.out.IsRendering("g"))

	for i := 1; i <= 3; i++ {
		assert.Equal(t, byte(i), recv(t, s.voice.send)[0])
	}
	<-done
	assert.False(t, s.out.IsRendering("g"))
}

func TestPauseHoldsFramesUntilResume(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	require.NoError(t, s.out.Connect(ctx, "g", "v1"))

	done, err := s.out.Play(ctx, "g", sources.Track{Title: "x"}, frames(3))
	require.NoError(t, err)
	assert.Equal(t, byte(1), recv(t, s.voice.send)[0])

	require.True(t, s.out.Pause("g"))
	// the pump may already hold frame 2; nothing after it may go out while paused
	var got []byte
	select {
	case b := <-s.voice.send:
		got = append(got, b[0])
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-s.voice.send:
		t.Fatal("frame sent while paused")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, s.out.IsRendering("g"))

	require.True(t, s.out.Resume("g"))
	for len(got) < 2 {
		got = append(got, recv(t, s.voice.send)[0])
	}
	assert.Equal(t, []byte{2, 3}, got)
	<-done
}

func TestStopEndsPausedRender(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	require.NoError(t, s.out.Connect(ctx, "g", "v1"))

	done, err := s.out.Play(ctx, "g", sources.Track{Title: "x"}, frames(100))
	require.NoError(t, err)
	recv(t, s.voice.send)
	s.out.Pause("g")

	s.out.Stop("g")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("render did not stop")
	}
	assert.False(t, s.out.IsRendering("g"))
}

func TestPlayRequiresConnection(t *testing.T) {
	s := newSetup(t)
	_, err := s.out.Play(context.Background(), "g", sources.Track{}, frames(1))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestAloneRoomsAndDisconnect(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	require.NoError(t, s.out.Connect(ctx, "a", "v1"))
	require.NoError(t, s.out.Connect(ctx, "b", "v1"))
	require.NoError(t, s.out.Connect(ctx, "c", "v1"))
	s.members["a"] = 0
	s.members["b"] = 2

	assert.Equal(t, []string{"a"}, s.out.AloneRooms())

	require.NoError(t, s.out.Disconnect("a"))
	assert.False(t, s.out.Connected("a"))
	assert.True(t, s.voice.disconnected)
	assert.NoError(t, s.out.Disconnect("a"))
}
