package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsSourceDomain(t *testing.T) {
	domain, ok := ContainsSourceDomain("my youtube.com mix")
	assert.True(t, ok)
	assert.Equal(t, YouTubeDomain, domain)

	domain, ok = ContainsSourceDomain("soundcloud.com-favs")
	assert.True(t, ok)
	assert.Equal(t, SoundCloudDomain, domain)

	_, ok = ContainsSourceDomain("favs")
	assert.False(t, ok)
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "youtube", KindYouTube.String())
	assert.Equal(t, "soundcloud", KindSoundCloud.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "", KindUnknown.Domain())
}
