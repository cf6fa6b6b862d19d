package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// decodeFunc turns an encoded audio file into raw PCM.
type decodeFunc func(ctx context.Context, in io.Reader) (io.ReadCloser, error)

// ffmpegDecoder pipes in through ffmpeg and yields 48kHz stereo s16le.
func ffmpegDecoder(path string) decodeFunc {
	if path == "" {
		path = "ffmpeg"
	}
	return func(ctx context.Context, in io.Reader) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, path,
			"-i", "pipe:0",
			"-f", "s16le",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", strconv.Itoa(channels),
			"-loglevel", "warning",
			"pipe:1",
		)
		cmd.Stdin = in

		reader, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe error: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("command start error: %w", err)
		}
		return &process{ReadCloser: reader, cmd: cmd}, nil
	}
}

type process struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *process) Close() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}
