package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

// pcmSource yields interleaved s16le stereo PCM at 48kHz. Close releases the
// source and reports how it ended.
type pcmSource interface {
	io.Reader
	Close() error
}

type sourceFunc func(ctx context.Context, streamURL string) (pcmSource, error)

func ffmpegArgs(streamURL string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5",
		"-user_agent", utils.RandomUserAgent(),
		"-headers", utils.FFmpegHeaders(),
		"-i", streamURL,
		"-vn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"pipe:1",
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

func startFFmpeg(ctx context.Context, streamURL string) (pcmSource, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(streamURL)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}
	return &ffmpegStream{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

func (f *ffmpegStream) Read(p []byte) (int, error) {
	return f.stdout.Read(p)
}

func (f *ffmpegStream) Close() error {
	_ = f.stdout.Close()
	err := f.cmd.Wait()
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(f.stderr.String()); msg != "" {
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return fmt.Errorf("ffmpeg: %w", err)
}
