package voice

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

const (
	sampleRate = 48000
	channels   = 2
	// samples per channel in one 20ms frame
	frameSamples = 960
	frameBytes   = frameSamples * channels * 2
	bitRate      = 128_000
)

// frameEncoder turns fixed-size s16le PCM frames into Opus packets.
type frameEncoder interface {
	EncodeFrame(pcm []byte, emit func([]byte) error) error
	Flush(emit func([]byte) error) error
	Close()
}

type opusEncoder struct {
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	packet *astiav.Packet
}

func newOpusEncoder() (frameEncoder, error) {
	codec := astiav.FindEncoderByName("libopus")
	if codec == nil {
		return nil, errors.New("libopus encoder not found")
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("alloc opus codec context")
	}
	cc.SetSampleRate(sampleRate)
	cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	cc.SetSampleFormat(astiav.SampleFormatS16)
	cc.SetBitRate(bitRate)

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("frame_duration", "20", 0)
	_ = opts.Set("application", "audio", 0)

	if err := cc.Open(codec, opts); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open opus encoder: %w", err)
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, errors.New("alloc opus frame")
	}
	frame.SetSampleRate(sampleRate)
	frame.SetChannelLayout(astiav.ChannelLayoutStereo)
	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetNbSamples(frameSamples)
	if err := frame.AllocBuffer(0); err != nil {
		frame.Free()
		cc.Free()
		return nil, fmt.Errorf("alloc frame buffer: %w", err)
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		frame.Free()
		cc.Free()
		return nil, errors.New("alloc opus packet")
	}
	return &opusEncoder{cc: cc, frame: frame, packet: pkt}, nil
}

func (e *opusEncoder) EncodeFrame(pcm []byte, emit func([]byte) error) error {
	if len(pcm) != frameBytes {
		return fmt.Errorf("pcm frame is %d bytes, want %d", len(pcm), frameBytes)
	}
	if err := e.frame.Data().SetBytes(pcm, 0); err != nil {
		return fmt.Errorf("set frame data: %w", err)
	}
	if err := e.cc.SendFrame(e.frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return e.drain(emit)
}

func (e *opusEncoder) Flush(emit func([]byte) error) error {
	if err := e.cc.SendFrame(nil); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil
		}
		return fmt.Errorf("flush encoder: %w", err)
	}
	return e.drain(emit)
}

func (e *opusEncoder) drain(emit func([]byte) error) error {
	for {
		e.packet.Unref()
		if err := e.cc.ReceivePacket(e.packet); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receive packet: %w", err)
		}
		if err := emit(e.packet.Data()); err != nil {
			return err
		}
	}
}

func (e *opusEncoder) Close() {
	e.packet.Free()
	e.frame.Free()
	e.cc.Free()
}
