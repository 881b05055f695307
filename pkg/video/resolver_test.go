package video

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectStream(t *testing.T) {
	tests := []struct {
		name     string
		streams  Streams
		expected Stream
		ok       bool
	}{
		{
			name:     "best first",
			streams:  Streams{{"480p", "url480"}, {"720p", "url720"}, {"best", "urlBest"}},
			expected: Stream{"best", "urlBest"},
			ok:       true,
		},
		{
			name:     "720p when no best",
			streams:  Streams{{"480p", "url480"}, {"720p", "url720"}},
			expected: Stream{"720p", "url720"},
			ok:       true,
		},
		{
			name:     "first present otherwise",
			streams:  Streams{{"audio_only", ""}, {"360p", "url360"}, {"480p", "url480"}},
			expected: Stream{"360p", "url360"},
			ok:       true,
		},
		{
			name:     "best without URL is skipped",
			streams:  Streams{{"best", ""}, {"720p", "url720"}},
			expected: Stream{"720p", "url720"},
			ok:       true,
		},
		{
			name:    "nothing",
			streams: Streams{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, ok := SelectStream(tt.streams, "best", "720p")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, stream)
		})
	}
}

func TestStaticResolver(t *testing.T) {
	streams, err := StaticResolver{}.Resolve(context.Background(), "https://example.com/live.m3u8")
	require.NoError(t, err)
	assert.Equal(t, Streams{{Quality: "best", URL: "https://example.com/live.m3u8"}}, streams)

	streams, err = StaticResolver{}.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, streams)
}
