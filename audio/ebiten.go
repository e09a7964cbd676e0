package audio

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/milk9111/dosound/sound"
)

// EbitenPlayer plays digital voices through an ebiten audio context.
// Channel messages cannot be synthesized; they are tracked per handle and
// channel volume is applied to the handle's voice.
type EbitenPlayer struct {
	ctx       *audio.Context
	logger    *slog.Logger
	polyphony int

	mu       sync.Mutex
	voices   map[sound.Handle]*audio.Player
	channels map[sound.Handle]map[int]*Channel
}

type Option func(*EbitenPlayer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *EbitenPlayer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithPolyphony(n int) Option {
	return func(p *EbitenPlayer) {
		if n > 0 {
			p.polyphony = n
		}
	}
}

// NewEbitenPlayer uses the process-wide audio context, creating it at
// sampleRate when none exists yet.
func NewEbitenPlayer(sampleRate int, opts ...Option) *EbitenPlayer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(sampleRate)
	}
	p := &EbitenPlayer{
		ctx:       ctx,
		logger:    slog.Default().With("component", "audio"),
		polyphony: DefaultPolyphony,
		voices:    make(map[sound.Handle]*audio.Player),
		channels:  make(map[sound.Handle]map[int]*Channel),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *EbitenPlayer) SampleRate() int {
	return p.ctx.SampleRate()
}

// StartVoice replaces any voice h already owns.
func (p *EbitenPlayer) StartVoice(h sound.Handle, data []byte) (time.Duration, error) {
	if p.ctx == nil {
		return 0, ErrNoContext
	}
	stream, err := wav.DecodeWithSampleRate(p.ctx.SampleRate(), bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("audio: start voice %s: %w: %w", h, ErrNotWAV, err)
	}
	player, err := p.ctx.NewPlayer(stream)
	if err != nil {
		return 0, fmt.Errorf("audio: start voice %s: %w", h, err)
	}

	p.mu.Lock()
	if old, ok := p.voices[h]; ok {
		p.closeVoice(h, old)
	} else if len(p.voices) >= p.polyphony {
		p.mu.Unlock()
		_ = player.Close()
		return 0, fmt.Errorf("audio: start voice %s: %w", h, ErrVoiceLimit)
	}
	p.voices[h] = player
	player.SetVolume(p.volumeLocked(h))
	p.mu.Unlock()

	player.Play()
	dur := framesToDuration(stream.Length()/bytesPerFrame, p.ctx.SampleRate())
	p.logger.Debug("voice started", "handle", h.String(), "duration", dur)
	return dur, nil
}

func (p *EbitenPlayer) StopVoice(h sound.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if player, ok := p.voices[h]; ok {
		p.closeVoice(h, player)
	}
}

func (p *EbitenPlayer) closeVoice(h sound.Handle, player *audio.Player) {
	player.Pause()
	if err := player.Close(); err != nil {
		p.logger.Warn("voice close failed", "handle", h.String(), "error", err)
	}
	delete(p.voices, h)
}

func (p *EbitenPlayer) SendControlMessage(h sound.Handle, channel, status, controller, param int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	chans, ok := p.channels[h]
	if !ok {
		chans = make(map[int]*Channel)
		p.channels[h] = chans
	}
	ch, ok := chans[channel]
	if !ok {
		ch = newChannel()
		chans[channel] = ch
	}
	if ch.apply(status, controller, param) {
		if player, ok := p.voices[h]; ok {
			player.SetVolume(p.volumeLocked(h))
		}
	}
}

// volumeLocked is the quietest channel volume of h, as a 0..1 gain.
func (p *EbitenPlayer) volumeLocked(h sound.Handle) float64 {
	v := maxControlValue
	for _, ch := range p.channels[h] {
		v = min(v, ch.Volume)
	}
	return float64(v) / maxControlValue
}

func (p *EbitenPlayer) Polyphony() int {
	return p.polyphony
}

// Voices returns the number of live voices.
func (p *EbitenPlayer) Voices() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.voices)
}

// Close stops every voice.
func (p *EbitenPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for h, player := range p.voices {
		p.closeVoice(h, player)
	}
	return nil
}
