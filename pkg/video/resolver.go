package video

import (
	"context"

	"github.com/chenBenjamin97/robot-scout/pkg/utils"
)

//Stream is a playable media URL of a given quality
type Stream struct {
	Quality string
	URL     string
}

//Streams is the list of streams a source resolved to, in the order reported by the resolver
type Streams []Stream

//Get returns the first stream of given quality with a non empty URL
func (s Streams) Get(quality string) (Stream, bool) {
	for _, stream := range s {
		if stream.Quality == quality && stream.URL != "" {
			return stream, true
		}
	}
	return Stream{}, false
}

//Resolver turns a source identifier (e.g. a Twitch channel URL) into playable media URLs.
//An empty result without an error means the source is not streaming right now.
type Resolver interface {
	Resolve(ctx context.Context, source string) (Streams, error)
}

//ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(ctx context.Context, source string) (Streams, error)

func (f ResolverFunc) Resolve(ctx context.Context, source string) (Streams, error) {
	return f(ctx, source)
}

//SelectStream picks the first available preferred quality, otherwise the first stream with a URL
func SelectStream(streams Streams, preferred ...string) (Stream, bool) {
	for _, quality := range preferred {
		if stream, ok := streams.Get(quality); ok {
			return stream, true
		}
	}

	for _, stream := range streams {
		if stream.URL != "" {
			return stream, true
		}
	}

	return Stream{}, false
}

//StaticResolver resolves every source to itself. Useful for sources which are already playable (HLS/RTSP URLs)
//but still need the live reconnection behavior.
type StaticResolver struct{}

func (StaticResolver) Resolve(_ context.Context, source string) (Streams, error) {
	if source == "" {
		return nil, nil
	}
	return Streams{{Quality: utils.BestQuality, URL: source}}, nil
}
