package audio

import (
	"sync"
	"time"

	"github.com/milk9111/dosound/sound"
)

// Message is one channel message received by a NullPlayer.
type Message struct {
	Handle     sound.Handle
	Channel    int
	Status     int
	Controller int
	Param      int
}

// NullPlayer produces no output. Voice durations come from the wav data, so
// playback timing matches a real player.
type NullPlayer struct {
	SampleRate int
	// PolyphonyLimit is reported by Polyphony; zero means DefaultPolyphony.
	PolyphonyLimit int

	mu       sync.Mutex
	voices   map[sound.Handle]time.Duration
	messages []Message
	channels map[sound.Handle]map[int]*Channel
}

func NewNullPlayer(sampleRate int) *NullPlayer {
	return &NullPlayer{SampleRate: sampleRate}
}

func (p *NullPlayer) StartVoice(h sound.Handle, data []byte) (time.Duration, error) {
	dur, err := Duration(data, p.SampleRate)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.voices == nil {
		p.voices = make(map[sound.Handle]time.Duration)
	}
	p.voices[h] = dur
	return dur, nil
}

func (p *NullPlayer) StopVoice(h sound.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.voices, h)
}

func (p *NullPlayer) SendControlMessage(h sound.Handle, channel, status, controller, param int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{h, channel, status, controller, param})
	if p.channels == nil {
		p.channels = make(map[sound.Handle]map[int]*Channel)
	}
	if p.channels[h] == nil {
		p.channels[h] = make(map[int]*Channel)
	}
	ch, ok := p.channels[h][channel]
	if !ok {
		ch = newChannel()
		p.channels[h][channel] = ch
	}
	ch.apply(status, controller, param)
}

func (p *NullPlayer) Polyphony() int {
	if p.PolyphonyLimit > 0 {
		return p.PolyphonyLimit
	}
	return DefaultPolyphony
}

// Playing reports whether h has a live voice.
func (p *NullPlayer) Playing(h sound.Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.voices[h]
	return ok
}

func (p *NullPlayer) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// Channel returns a copy of the controller state of one channel of h.
func (p *NullPlayer) Channel(h sound.Handle, channel int) (Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[h][channel]
	if !ok {
		return Channel{}, false
	}
	out := *ch
	out.Controller = make(map[int]int, len(ch.Controller))
	for k, v := range ch.Controller {
		out.Controller[k] = v
	}
	return out, true
}

var (
	_ sound.Player = (*NullPlayer)(nil)
	_ sound.Player = (*EbitenPlayer)(nil)
)
