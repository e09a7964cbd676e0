// Package audio provides sound.Player backends: an ebiten-backed player for
// real output and a silent player for headless runs and tests.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

const (
	DefaultSampleRate = 44100
	DefaultPolyphony  = 16

	// Decoded streams are 16-bit stereo.
	bytesPerFrame = 4

	ctrlChannelVolume = 7
	maxControlValue   = 127
)

var (
	ErrNotWAV     = errors.New("audio: voice data is not a wav stream")
	ErrNoContext  = errors.New("audio: no audio context")
	ErrVoiceLimit = errors.New("audio: voice limit reached")
)

// Duration decodes a wav stream and returns how long it plays at
// sampleRate.
func Duration(data []byte, sampleRate int) (time.Duration, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	stream, err := wav.DecodeWithSampleRate(sampleRate, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}
	return framesToDuration(stream.Length()/bytesPerFrame, sampleRate), nil
}

func framesToDuration(frames int64, sampleRate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// Channel is the controller state the player keeps per song channel.
type Channel struct {
	Volume     int
	PitchBend  int
	Controller map[int]int
}

func newChannel() *Channel {
	return &Channel{Volume: maxControlValue, PitchBend: 0x2000, Controller: map[int]int{}}
}

// apply records one channel message and reports whether it changed the
// channel volume.
func (c *Channel) apply(status, controller, param int) bool {
	switch status {
	case 0xe0:
		c.PitchBend = param << 7
	case 0xb0:
		c.Controller[controller] = param
		if controller == ctrlChannelVolume {
			c.Volume = min(max(param, 0), maxControlValue)
			return true
		}
	}
	return false
}
