// Package voice plays resolved streams into a Discord voice channel.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

const sendTimeout = time.Second

// Connection is a player.Sink bound to one guild's voice connection.
type Connection struct {
	GuildID   string
	ChannelID string

	vc       *discordgo.VoiceConnection
	send     chan<- []byte
	ready    func() bool
	speaking func(bool)
	source   sourceFunc
	encoder  func() (frameEncoder, error)
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	seq     uint64
	playing bool
	closed  bool
}

var _ player.Sink = (*Connection)(nil)

// Join connects to a voice channel, deafened.
func Join(s *discordgo.Session, guildID, channelID string, logger *zap.Logger) (*Connection, error) {
	vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	// Kill closes these; discordgo leaves them nil until the first send.
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	c := &Connection{
		GuildID:   guildID,
		ChannelID: channelID,
		vc:        vc,
		send:      vc.OpusSend,
		ready: func() bool {
			vc.RLock()
			defer vc.RUnlock()
			return vc.Ready
		},
		speaking: func(on bool) { _ = vc.Speaking(on) },
		source:   startFFmpeg,
		encoder:  newOpusEncoder,
		logger:   logger.With(zap.String("guildID", guildID), zap.String("channelID", channelID)),
	}
	return c, nil
}

func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	return !closed && c.ready()
}

func (c *Connection) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Play starts streaming in the background. onComplete runs once the stream
// ends, fails or is stopped.
func (c *Connection) Play(streamURL string, onComplete func(error)) error {
	if !c.IsConnected() {
		return player.ErrVoiceDisconnected
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	enc, err := c.encoder()
	if err != nil {
		cancel()
		return err
	}
	src, err := c.source(ctx, streamURL)
	if err != nil {
		enc.Close()
		cancel()
		return err
	}

	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()

	go c.pump(ctx, seq, src, enc, onComplete)
	return nil
}

func (c *Connection) pump(ctx context.Context, seq uint64, src pcmSource, enc frameEncoder, onComplete func(error)) {
	c.speaking(true)
	err := c.stream(ctx, src, enc)
	closeErr := src.Close()
	enc.Close()
	c.speaking(false)

	c.mu.Lock()
	if c.seq == seq {
		c.playing = false
		c.cancel = nil
	}
	c.mu.Unlock()

	if ctx.Err() != nil {
		// stopped
		err = nil
	} else if err == nil {
		err = closeErr
	}
	if err != nil {
		c.logger.Warn("stream ended with error", zap.Error(err))
	}
	onComplete(err)
}

func (c *Connection) stream(ctx context.Context, src io.Reader, enc frameEncoder) error {
	emit := func(pkt []byte) error {
		out := make([]byte, len(pkt))
		copy(out, pkt)
		select {
		case c.send <- out:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sendTimeout):
			return errors.New("opus send timed out")
		}
	}

	buf := make([]byte, frameBytes)
	for {
		n, err := io.ReadFull(src, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		last := errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !last {
			return fmt.Errorf("read pcm: %w", err)
		}
		if last {
			clear(buf[n:])
		}
		if err := enc.EncodeFrame(buf, emit); err != nil {
			return err
		}
		if last {
			break
		}
	}
	return enc.Flush(emit)
}

// Stop aborts the current stream; its onComplete receives nil.
func (c *Connection) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

// Close stops playback and leaves the voice channel.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	if c.vc == nil {
		return nil
	}
	c.speaking(false)
	return c.vc.Disconnect()
}
