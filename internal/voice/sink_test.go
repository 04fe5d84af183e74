package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

type fakeEncoder struct {
	frames  int
	flushed bool
	closed  bool
}

func (e *fakeEncoder) EncodeFrame(pcm []byte, emit func([]byte) error) error {
	e.frames++
	return emit(pcm[:4])
}

func (e *fakeEncoder) Flush(emit func([]byte) error) error {
	e.flushed = true
	return nil
}

func (e *fakeEncoder) Close() { e.closed = true }

type fakeSource struct {
	io.Reader
	closeErr error
}

func (s *fakeSource) Close() error { return s.closeErr }

func newTestConnection(src sourceFunc, enc *fakeEncoder) (*Connection, chan []byte) {
	send := make(chan []byte, 64)
	return &Connection{
		send:     send,
		ready:    func() bool { return true },
		speaking: func(bool) {},
		source:   src,
		encoder:  func() (frameEncoder, error) { return enc, nil },
		logger:   zap.NewNop(),
	}, send
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("onComplete was not called")
		return nil
	}
}

func TestPlayStreamsAllFrames(t *testing.T) {
	pcm := make([]byte, frameBytes*2+frameBytes/2)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	enc := &fakeEncoder{}
	c, send := newTestConnection(func(context.Context, string) (pcmSource, error) {
		return &fakeSource{Reader: bytes.NewReader(pcm)}, nil
	}, enc)

	done := make(chan error, 1)
	if err := c.Play("stream://a", func(err error) { done <- err }); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("onComplete err = %v, want nil", err)
	}

	if enc.frames != 3 {
		t.Errorf("encoded %d frames, want 3 (last one padded)", enc.frames)
	}
	if !enc.flushed || !enc.closed {
		t.Errorf("encoder flushed=%v closed=%v, want both", enc.flushed, enc.closed)
	}
	if len(send) != 3 {
		t.Errorf("sent %d packets, want 3", len(send))
	}
	first := <-send
	if !slices.Equal(first, pcm[:4]) {
		t.Errorf("first packet = %v, want %v", first, pcm[:4])
	}
	if c.IsPlaying() {
		t.Error("IsPlaying after stream end")
	}
}

func TestStopCompletesWithNil(t *testing.T) {
	enc := &fakeEncoder{}
	c, _ := newTestConnection(func(ctx context.Context, _ string) (pcmSource, error) {
		pr, pw := io.Pipe()
		go func() {
			<-ctx.Done()
			_ = pw.CloseWithError(errors.New("killed"))
		}()
		return &fakeSource{Reader: pr, closeErr: errors.New("signal: killed")}, nil
	}, enc)

	done := make(chan error, 1)
	if err := c.Play("stream://a", func(err error) { done <- err }); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !c.IsPlaying() {
		t.Fatal("IsPlaying = false while streaming")
	}
	c.Stop()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("onComplete err = %v, want nil after Stop", err)
	}
	if c.IsPlaying() {
		t.Error("IsPlaying after Stop")
	}
}

func TestSourceFailureReported(t *testing.T) {
	boom := errors.New("ffmpeg: exit status 1")
	c, _ := newTestConnection(func(context.Context, string) (pcmSource, error) {
		return &fakeSource{Reader: bytes.NewReader(nil), closeErr: boom}, nil
	}, &fakeEncoder{})

	done := make(chan error, 1)
	if err := c.Play("stream://a", func(err error) { done <- err }); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := waitDone(t, done); !errors.Is(err, boom) {
		t.Fatalf("onComplete err = %v, want %v", err, boom)
	}
}

func TestPlayWhenDisconnected(t *testing.T) {
	c, _ := newTestConnection(func(context.Context, string) (pcmSource, error) {
		t.Fatal("source started while disconnected")
		return nil, nil
	}, &fakeEncoder{})
	c.ready = func() bool { return false }

	err := c.Play("stream://a", func(error) { t.Error("onComplete called") })
	if !errors.Is(err, player.ErrVoiceDisconnected) {
		t.Fatalf("Play err = %v, want ErrVoiceDisconnected", err)
	}

	c.ready = func() bool { return true }
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected after Close")
	}
}

func TestPlaySourceStartError(t *testing.T) {
	enc := &fakeEncoder{}
	startErr := errors.New("ffmpeg start: not found")
	c, _ := newTestConnection(func(context.Context, string) (pcmSource, error) {
		return nil, startErr
	}, enc)

	if err := c.Play("stream://a", func(error) { t.Error("onComplete called") }); !errors.Is(err, startErr) {
		t.Fatalf("Play err = %v, want %v", err, startErr)
	}
	if !enc.closed {
		t.Error("encoder not released after failed start")
	}
	if c.IsPlaying() {
		t.Error("IsPlaying after failed start")
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("https://example.com/a.webm")
	i := slices.Index(args, "-i")
	if i < 0 || args[i+1] != "https://example.com/a.webm" {
		t.Fatalf("input not passed: %v", args)
	}
	for _, want := range []string{"s16le", "48000", "pipe:1"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
}
