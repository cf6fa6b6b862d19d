package source_resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/soundcloud"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/pkg/retrylimit"

	"github.com/rs/zerolog/log"
)

// MediaResolver picks the source responsible for a URL and fetches its audio,
// retrying transient failures under a shared adaptive limiter.
type MediaResolver struct {
	sources []sources.Source
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
}

// New builds a resolver over the given sources. The first source whose Match
// accepts a URL wins, so order matters.
func New(srcs ...sources.Source) *MediaResolver {
	return &MediaResolver{
		sources: srcs,
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
		retry:   retrylimit.DefaultRetryConfig(),
	}
}

// NewDefault wires the YouTube and SoundCloud sources.
func NewDefault(proxy, ytdlpPath string) *MediaResolver {
	return New(youtube.New(proxy), soundcloud.New(ytdlpPath))
}

// WithRetry overrides the retry policy. Tests use it to drop the backoff.
func (r *MediaResolver) WithRetry(cfg retrylimit.RetryConfig) *MediaResolver {
	r.retry = cfg
	return r
}

// Classify returns the kind that would handle input, or KindUnknown.
func (r *MediaResolver) Classify(input string) sources.Kind {
	if src := r.sourceFor(input); src != nil {
		return src.Kind()
	}
	return sources.KindUnknown
}

// IsMediaURL reports whether input should be resolved rather than treated as
// a playlist name.
func (r *MediaResolver) IsMediaURL(input string) bool {
	if _, ok := sources.ContainsSourceDomain(input); ok {
		return true
	}
	return r.sourceFor(input) != nil
}

// Resolve fetches audio for url. Unknown kinds fail with ErrUnsupportedSource
// without touching the network; everything else that goes wrong is reported
// as ErrDownloadFailed.
func (r *MediaResolver) Resolve(ctx context.Context, url string) (sources.Audio, error) {
	url = strings.TrimSpace(url)
	src := r.sourceFor(url)
	if src == nil {
		return sources.Audio{}, fmt.Errorf("%w: %s", sources.ErrUnsupportedSource, url)
	}

	logger := log.With().Str("module", "source_resolver").Str("kind", src.Kind().String()).Str("url", url).Logger()
	logger.Debug().Msg("resolving")

	var audio sources.Audio
	err := retrylimit.WithRetryConfig(ctx, func() error {
		a, err := src.Fetch(ctx, url)
		if err != nil {
			if errors.Is(err, sources.ErrUnsupportedSource) {
				return retrylimit.Permanent(err)
			}
			return err
		}
		audio = a
		return nil
	}, r.limiter, r.retry)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sources.Audio{}, ctxErr
		}
		logger.Warn().Err(err).Msg("resolve failed")
		if errors.Is(err, sources.ErrUnsupportedSource) || errors.Is(err, sources.ErrDownloadFailed) {
			return sources.Audio{}, err
		}
		return sources.Audio{}, fmt.Errorf("%w: %v", sources.ErrDownloadFailed, err)
	}

	if audio.Kind == sources.KindUnknown {
		audio.Kind = src.Kind()
	}
	if audio.URL == "" {
		audio.URL = url
	}
	return audio, nil
}

func (r *MediaResolver) sourceFor(input string) sources.Source {
	for _, s := range r.sources {
		if s.Match(input) {
			return s
		}
	}
	return nil
}
