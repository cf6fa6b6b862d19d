package soundcloud

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"

	"github.com/rs/zerolog/log"
)

// runFunc runs an external command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type SoundCloudSource struct {
	ytdlpPath string
	run       runFunc
}

// New creates a SoundCloud source that shells out to yt-dlp.
func New(ytdlpPath string) *SoundCloudSource {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	return &SoundCloudSource{ytdlpPath: ytdlpPath, run: execRun}
}

func (s *SoundCloudSource) Kind() sources.Kind { return sources.KindSoundCloud }

func (s *SoundCloudSource) Match(input string) bool {
	return isURL(input) && strings.Contains(input, sources.SoundCloudDomain)
}

// Fetch asks yt-dlp for the track title, then streams the best audio to stdout.
func (s *SoundCloudSource) Fetch(ctx context.Context, input string) (sources.Audio, error) {
	input = strings.TrimSpace(input)

	out, err := s.run(ctx, s.ytdlpPath, "-j", "--no-playlist", input)
	if err != nil {
		return sources.Audio{}, fmt.Errorf("%w: yt-dlp info: %v", sources.ErrDownloadFailed, err)
	}
	info, err := parseInfo(out)
	if err != nil {
		return sources.Audio{}, fmt.Errorf("%w: %v", sources.ErrDownloadFailed, err)
	}

	data, err := s.run(ctx, s.ytdlpPath, "-f", "bestaudio/best", "--no-playlist", "-q", "-o", "-", input)
	if err != nil {
		return sources.Audio{}, fmt.Errorf("%w: yt-dlp download: %v", sources.ErrDownloadFailed, err)
	}
	if len(data) == 0 {
		return sources.Audio{}, fmt.Errorf("%w: yt-dlp returned no audio", sources.ErrDownloadFailed)
	}

	log.Debug().Str("module", "soundcloud").Str("title", info.Title).Int("bytes", len(data)).Msg("fetched audio")

	return sources.Audio{
		Kind:  sources.KindSoundCloud,
		Title: info.Title,
		URL:   input,
		Data:  data,
	}, nil
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
