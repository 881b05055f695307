package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/facebookincubator/go-belt/tool/logger"
)

const defaultStreamlinkPath = "streamlink"

//StreamlinkResolver resolves stream pages (Twitch, YouTube, ...) by running the streamlink CLI in JSON mode
type StreamlinkResolver struct {
	//Path is the streamlink executable, "streamlink" from $PATH when empty
	Path string
	//Args are passed to streamlink before the source URL, e.g. "--twitch-disable-ads"
	Args []string
}

func (r StreamlinkResolver) Resolve(ctx context.Context, source string) (Streams, error) {
	path := r.Path
	if path == "" {
		path = defaultStreamlinkPath
	}

	args := append([]string{"--json"}, r.Args...)
	args = append(args, source)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debugf(ctx, "StreamlinkResolver: running %s %s", path, strings.Join(args, " "))
	runErr := cmd.Run()

	//streamlink prints a JSON error object and exits with a non zero code when nothing is playable,
	//so stdout is parsed first to get a meaningful message
	streams, parseErr := parseStreamlinkOutput(stdout.Bytes())
	switch {
	case parseErr != nil && runErr != nil:
		return nil, fmt.Errorf("streamlink failed: %w (stderr: '%s')", runErr, strings.TrimSpace(stderr.String()))
	case parseErr != nil:
		return nil, parseErr
	case runErr != nil && len(streams) == 0:
		return nil, fmt.Errorf("streamlink failed: %w", runErr)
	}

	return streams, nil
}

//parseStreamlinkOutput reads the "streams" object of `streamlink --json` keeping the order streamlink reported
func parseStreamlinkOutput(data []byte) (Streams, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("streamlink returned no output")
	}

	if msg, err := jsonparser.GetString(data, "error"); err == nil {
		return nil, fmt.Errorf("streamlink: %s", msg)
	}

	streams := Streams{}
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.Object {
			return nil
		}
		url, err := jsonparser.GetString(value, "url")
		if err != nil {
			return nil //e.g. streams without a direct URL
		}
		streams = append(streams, Stream{Quality: string(key), URL: url})
		return nil
	}, "streams")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, fmt.Errorf("unable to parse streamlink output: %w", err)
	}

	return streams, nil
}
