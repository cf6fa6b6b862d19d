package youtube

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/retrylimit"

	kkdai "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"
)

// maxAudioBytes caps a single download so one link cannot exhaust memory.
const maxAudioBytes = 64 << 20

type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error)
	GetStreamContext(ctx context.Context, video *kkdai.Video, format *kkdai.Format) (io.ReadCloser, int64, error)
}

type YouTubeSource struct {
	client videoClient
}

// New creates a YouTube source. proxy may be empty.
func New(proxy string) *YouTubeSource {
	return &YouTubeSource{client: NewClient(proxy)}
}

func (y *YouTubeSource) Kind() sources.Kind { return sources.KindYouTube }

func (y *YouTubeSource) Match(input string) bool {
	return isYouTubeURL(input)
}

// Fetch downloads the best audio-only format of a video into memory. Failures
// that another attempt cannot fix are marked permanent for the retry loop.
func (y *YouTubeSource) Fetch(ctx context.Context, input string) (sources.Audio, error) {
	input = strings.TrimSpace(input)
	if !isYouTubeVideoURL(input) {
		return sources.Audio{}, retrylimit.Permanent(fmt.Errorf("%w: not a video link: %s", sources.ErrDownloadFailed, input))
	}
	input = CleanVideoURL(input)

	video, err := y.client.GetVideoContext(ctx, input)
	if err != nil {
		return sources.Audio{}, fmt.Errorf("%w: video info: %v", sources.ErrDownloadFailed, err)
	}

	format, err := pickAudioFormat(video)
	if err != nil {
		return sources.Audio{}, err
	}

	stream, _, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return sources.Audio{}, fmt.Errorf("%w: open stream: %v", sources.ErrDownloadFailed, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, maxAudioBytes+1))
	if err != nil {
		return sources.Audio{}, fmt.Errorf("%w: read stream: %v", sources.ErrDownloadFailed, err)
	}
	if len(data) > maxAudioBytes {
		return sources.Audio{}, retrylimit.Permanent(fmt.Errorf("%w: track exceeds %d bytes", sources.ErrDownloadFailed, maxAudioBytes))
	}

	title := video.Title
	if title == "" {
		title = "Unknown Title"
	}

	log.Debug().Str("module", "youtube").Str("title", title).Int("bytes", len(data)).Msg("fetched audio")

	return sources.Audio{
		Kind:  sources.KindYouTube,
		Title: title,
		URL:   input,
		Data:  data,
	}, nil
}

func pickAudioFormat(video *kkdai.Video) (*kkdai.Format, error) {
	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return nil, retrylimit.Permanent(fmt.Errorf("%w: no audio formats for %q", sources.ErrDownloadFailed, video.Title))
	}
	return &formats[0], nil
}
