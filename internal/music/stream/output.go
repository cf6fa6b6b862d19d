// Package stream renders staged audio into Discord voice channels.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("not connected to a voice channel")

// voiceConn is the slice of a discordgo voice connection used here.
type voiceConn interface {
	ChannelID() string
	Send() chan<- []byte
	Speaking(bool) error
	Disconnect() error
}

type joinFunc func(guildID, channelID string) (voiceConn, error)

// memberFunc counts the users other than the bot in a voice channel.
type memberFunc func(guildID, channelID string) (int, error)

type DiscordOutput struct {
	join       joinFunc
	members    memberFunc
	decode     decodeFunc
	newEncoder func() (encoder, error)

	mu      sync.Mutex
	conns   map[string]voiceConn
	renders map[string]*control
}

// NewDiscordOutput renders through the session's voice connections, decoding
// with the ffmpeg binary at ffmpegPath.
func NewDiscordOutput(s *discordgo.Session, ffmpegPath string) *DiscordOutput {
	return newOutput(sessionJoin(s), sessionMembers(s), ffmpegDecoder(ffmpegPath), newOpusEncoder)
}

func newOutput(join joinFunc, members memberFunc, decode decodeFunc, newEncoder func() (encoder, error)) *DiscordOutput {
	return &DiscordOutput{
		join:       join,
		members:    members,
		decode:     decode,
		newEncoder: newEncoder,
		conns:      make(map[string]voiceConn),
		renders:    make(map[string]*control),
	}
}

func (o *DiscordOutput) Connect(ctx context.Context, guildID, channelID string) error {
	o.mu.Lock()
	if vc, ok := o.conns[guildID]; ok && vc.ChannelID() == channelID {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	vc, err := o.join(guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	o.mu.Lock()
	o.conns[guildID] = vc
	o.mu.Unlock()

	log.Info().Str("module", "stream").Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
	return nil
}

func (o *DiscordOutput) Connected(guildID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.conns[guildID]
	return ok
}

func (o *DiscordOutput) Play(ctx context.Context, guildID string, track sources.Track, audio io.ReadCloser) (<-chan struct{}, error) {
	o.mu.Lock()
	vc, ok := o.conns[guildID]
	o.mu.Unlock()
	if !ok {
		audio.Close()
		return nil, ErrNotConnected
	}

	enc, err := o.newEncoder()
	if err != nil {
		audio.Close()
		return nil, err
	}

	pcm, err := o.decode(ctx, audio)
	if err != nil {
		audio.Close()
		return nil, fmt.Errorf("failed to create PCM stream for track: %w", err)
	}

	ctl := newControl()
	o.mu.Lock()
	if prev, ok := o.renders[guildID]; ok {
		prev.halt()
	}
	o.renders[guildID] = ctl
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer audio.Close()
		defer pcm.Close()

		logger := log.With().Str("module", "stream").Str("guild", guildID).Str("title", track.Title).Logger()

		if err := vc.Speaking(true); err != nil {
			logger.Debug().Err(err).Msg("speaking on failed")
		}
		if err := pump(pcm, ctl, enc, vc.Send()); err != nil {
			logger.Warn().Err(err).Msg("playback error")
		}
		if err := vc.Speaking(false); err != nil {
			logger.Debug().Err(err).Msg("speaking off failed")
		}

		o.mu.Lock()
		if o.renders[guildID] == ctl {
			delete(o.renders, guildID)
		}
		o.mu.Unlock()
		logger.Debug().Msg("render finished")
	}()

	return done, nil
}

func (o *DiscordOutput) IsRendering(guildID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.renders[guildID]
	return ok
}

func (o *DiscordOutput) Pause(guildID string) bool {
	if ctl := o.render(guildID); ctl != nil {
		return ctl.pause()
	}
	return false
}

func (o *DiscordOutput) Resume(guildID string) bool {
	if ctl := o.render(guildID); ctl != nil {
		return ctl.unpause()
	}
	return false
}

func (o *DiscordOutput) Stop(guildID string) {
	if ctl := o.render(guildID); ctl != nil {
		ctl.halt()
	}
}

func (o *DiscordOutput) Disconnect(guildID string) error {
	o.Stop(guildID)

	o.mu.Lock()
	vc, ok := o.conns[guildID]
	delete(o.conns, guildID)
	o.mu.Unlock()

	if !ok {
		return nil
	}
	if err := vc.Disconnect(); err != nil {
		return fmt.Errorf("voice disconnect: %w", err)
	}
	log.Info().Str("module", "stream").Str("guild", guildID).Msg("left voice channel")
	return nil
}

// AloneRooms lists guilds whose voice channel has no one but the bot.
func (o *DiscordOutput) AloneRooms() []string {
	o.mu.Lock()
	conns := make(map[string]string, len(o.conns))
	for g, vc := range o.conns {
		conns[g] = vc.ChannelID()
	}
	o.mu.Unlock()

	var alone []string
	for guildID, channelID := range conns {
		n, err := o.members(guildID, channelID)
		if err != nil {
			log.Debug().Str("module", "stream").Str("guild", guildID).Err(err).Msg("voice members unknown")
			continue
		}
		if n == 0 {
			alone = append(alone, guildID)
		}
	}
	sort.Strings(alone)
	return alone
}

func (o *DiscordOutput) render(guildID string) *control {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.renders[guildID]
}

type dgVoice struct {
	vc *discordgo.VoiceConnection
}

func (d dgVoice) ChannelID() string      { return d.vc.ChannelID }
func (d dgVoice) Send() chan<- []byte    { return d.vc.OpusSend }
func (d dgVoice) Speaking(on bool) error { return d.vc.Speaking(on) }
func (d dgVoice) Disconnect() error      { return d.vc.Disconnect() }

func sessionJoin(s *discordgo.Session) joinFunc {
	return func(guildID, channelID string) (voiceConn, error) {
		vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
		if err != nil {
			return nil, err
		}
		return dgVoice{vc: vc}, nil
	}
}

func sessionMembers(s *discordgo.Session) memberFunc {
	return func(guildID, channelID string) (int, error) {
		g, err := s.State.Guild(guildID)
		if err != nil {
			return 0, err
		}
		botID := ""
		if s.State.User != nil {
			botID = s.State.User.ID
		}
		n := 0
		for _, vs := range g.VoiceStates {
			if vs.ChannelID == channelID && vs.UserID != botID {
				n++
			}
		}
		return n, nil
	}
}
