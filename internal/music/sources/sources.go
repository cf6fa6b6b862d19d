package sources

import (
	"context"
	"errors"
	"strings"
)

// Kind is the closed set of media sources the bot can fetch from.
type Kind int

const (
	KindUnknown Kind = iota
	KindYouTube
	KindSoundCloud
)

const (
	YouTubeDomain    = "youtube.com"
	SoundCloudDomain = "soundcloud.com"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrDownloadFailed    = errors.New("download failed")
)

// String returns the lowercase source name.
func (k Kind) String() string {
	switch k {
	case KindYouTube:
		return "youtube"
	case KindSoundCloud:
		return "soundcloud"
	default:
		return "unknown"
	}
}

// Domain returns the substring that identifies URLs of this kind.
func (k Kind) Domain() string {
	switch k {
	case KindYouTube:
		return YouTubeDomain
	case KindSoundCloud:
		return SoundCloudDomain
	default:
		return ""
	}
}

// Kinds lists every supported kind in match order.
func Kinds() []Kind {
	return []Kind{KindYouTube, KindSoundCloud}
}

// ContainsSourceDomain reports whether s mentions any supported source domain.
// Playlist names must not, otherwise play could not tell them from links.
func ContainsSourceDomain(s string) (string, bool) {
	for _, k := range Kinds() {
		if strings.Contains(s, k.Domain()) {
			return k.Domain(), true
		}
	}
	return "", false
}

// Track is a resolved, playable unit of audio. Locator is a blob store key.
type Track struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Locator     string `json:"locator"`
	OriginalURL string `json:"url"`
}

// Audio is the raw result of a fetch, before it is staged in the blob store.
type Audio struct {
	Kind  Kind
	Title string
	URL   string
	Data  []byte
}

// Source fetches audio for one kind of URL.
type Source interface {
	Kind() Kind

	// Match checks if this source can handle the given input
	Match(input string) bool

	// Fetch downloads the audio and its display title.
	Fetch(ctx context.Context, url string) (Audio, error)
}
