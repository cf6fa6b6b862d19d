package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
	maxBytes   = frameSize * channels * 2
)

// encoder is the part of gopus.Encoder the pump needs.
type encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

func newOpusEncoder() (encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return enc, nil
}

// control pauses and stops one render.
type control struct {
	mu       sync.Mutex
	paused   bool
	resume   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newControl() *control {
	return &control{stop: make(chan struct{})}
}

func (c *control) pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return false
	}
	c.paused = true
	c.resume = make(chan struct{})
	return true
}

func (c *control) unpause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return false
	}
	c.paused = false
	close(c.resume)
	return true
}

func (c *control) halt() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// wait blocks while paused. It returns false once stopped.
func (c *control) wait() bool {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		select {
		case <-c.stop:
			return false
		default:
			return true
		}
	}
	ch := c.resume
	c.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-c.stop:
		return false
	}
}

// pump reads s16le stereo PCM, encodes 20ms Opus frames and hands them to send
// until the stream ends or ctl is stopped. A clean end of stream returns nil.
func pump(pcm io.Reader, ctl *control, enc encoder, send chan<- []byte) error {
	pcmBuf := make([]byte, maxBytes)
	intBuf := make([]int16, frameSize*channels)

	for {
		if !ctl.wait() {
			return nil
		}

		_, err := io.ReadFull(pcm, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := enc.Encode(intBuf, frameSize, maxBytes)
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case send <- opus:
		case <-ctl.stop:
			return nil
		}
	}
}
