package sound

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// maxEventsPerTick bounds the events one song may consume in a single tick,
// so a loop or hold section without delays cannot spin forever.
const maxEventsPerTick = 1024

// FadeParams describes a volume ramp.
type FadeParams struct {
	FinalVolume  int
	StepSize     int
	TicksPerStep int
	StopOnDone   bool
}

// Song is a snapshot of one registry entry.
type Song struct {
	Handle   Handle
	Number   int
	Status   Status
	Priority int
	Loops    int
	Hold     int
	Volume   int
	Restore  int
	Fade     FadeParams
	// Voice is set when the song is backed by digital audio.
	Voice bool
	// Elapsed counts the ticks the song has played since it was started.
	Elapsed int
}

type song struct {
	Song
	it Iterator

	next *StreamEvent
	wait int

	pausedByGlobal bool
}

type controlMessage struct {
	handle                            Handle
	channel, status, controller, data int
}

// Registry owns the live song handles. Commands run on the control loop;
// Tick may run on the player's goroutine. Pending events flow through a
// queue that the control loop drains with Poll or PollHandle.
type Registry struct {
	player Player
	logger *slog.Logger

	mu     sync.Mutex
	songs  map[Handle]*song
	volume int
	muted  bool
	reverb int

	events eventQueue
}

// NewRegistry creates an empty registry that drives player.
func NewRegistry(player Player, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default().With("component", "sound")
	}
	return &Registry{
		player: player,
		logger: logger,
		songs:  make(map[Handle]*song),
		volume: MaxMasterVolume,
	}
}

// Add registers a new song as Initialized. A live entry with the same
// handle is stopped and its iterator released first.
func (r *Registry) Add(h Handle, it Iterator, priority, number int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.songs[h]; ok {
		r.logger.Debug("replacing live handle", "handle", h.String(), "number", old.Number)
		r.teardownLocked(old)
		delete(r.songs, h)
	}
	r.songs[h] = &song{
		Song: Song{
			Handle:   h,
			Number:   number,
			Status:   StatusInitialized,
			Priority: priority,
			Loops:    1,
			Volume:   DefaultHandleVol,
		},
		it: it,
	}
}

// Remove stops a song, releases its iterator and forgets it, including any
// of its events still queued. It reports whether the handle was live.
func (r *Registry) Remove(h Handle) bool {
	r.mu.Lock()
	s, ok := r.songs[h]
	if ok {
		r.teardownLocked(s)
		delete(r.songs, h)
	}
	r.mu.Unlock()
	if ok {
		r.events.drop(h)
	}
	return ok
}

func (r *Registry) teardownLocked(s *song) {
	r.stopLocked(s)
	if s.it != nil {
		if err := s.it.Close(); err != nil {
			r.logger.Warn("iterator close failed", "handle", s.Handle.String(), "error", err)
		}
		s.it = nil
	}
}

func (r *Registry) stopLocked(s *song) {
	if s.Voice && s.Status != StatusStopped && r.player != nil {
		r.player.StopVoice(s.Handle)
	}
	s.Status = StatusStopped
	s.next = nil
	s.wait = 0
	s.pausedByGlobal = false
}

// StopVoices stops every song backed by a digital voice and reports it
// finished. Only one digital voice plays at a time.
func (r *Registry) StopVoices() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.songs {
		if s.Voice && s.Status != StatusStopped {
			r.finishLocked(s)
			n++
		}
	}
	return n
}

// AttachVoice marks a song as backed by a digital audio voice, so stopping
// it also stops the voice.
func (r *Registry) AttachVoice(h Handle) {
	r.with(h, func(s *song) { s.Voice = true })
}

// SetStatus changes a song's status. Playing is refused for a song without
// an iterator. Playing a stopped song restarts it from the beginning.
func (r *Registry) SetStatus(h Handle, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.songs[h]
	if !ok {
		return false
	}
	switch status {
	case StatusStopped:
		r.stopLocked(s)
	case StatusPlaying:
		if s.it == nil {
			r.logger.Warn("refusing to play handle without iterator", "handle", h.String())
			return false
		}
		if s.Status == StatusStopped {
			s.it.Rewind(false)
			s.next = nil
			s.wait = 0
			s.Elapsed = 0
		}
		s.Status = StatusPlaying
		s.pausedByGlobal = false
	default:
		s.Status = status
		s.pausedByGlobal = false
	}
	return true
}

func (r *Registry) with(h Handle, fn func(s *song)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.songs[h]
	if ok {
		fn(s)
	}
	return ok
}

func (r *Registry) SetLoops(h Handle, loops int) bool {
	return r.with(h, func(s *song) { s.Loops = loops })
}

func (r *Registry) SetPriority(h Handle, priority int) bool {
	return r.with(h, func(s *song) { s.Priority = priority })
}

func (r *Registry) SetHold(h Handle, hold int) bool {
	return r.with(h, func(s *song) { s.Hold = hold })
}

func (r *Registry) SetVolume(h Handle, volume int) bool {
	return r.with(h, func(s *song) { s.Volume = volume })
}

func (r *Registry) SetFade(h Handle, fade FadeParams) bool {
	return r.with(h, func(s *song) { s.Fade = fade })
}

func (r *Registry) SetRestoreBehavior(h Handle, restore int) bool {
	return r.with(h, func(s *song) { s.Restore = restore })
}

// Song returns a snapshot of a live entry.
func (r *Registry) Song(h Handle) (Song, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.songs[h]
	if !ok {
		return Song{}, false
	}
	return s.Song, true
}

// Has reports whether h is live.
func (r *Registry) Has(h Handle) bool {
	_, ok := r.Song(h)
	return ok
}

// Status returns the status of h, or Stopped for an unknown handle.
func (r *Registry) Status(h Handle) Status {
	s, ok := r.Song(h)
	if !ok {
		return StatusStopped
	}
	return s.Status
}

// Songs returns snapshots of every live entry, highest priority first.
func (r *Registry) Songs() []Song {
	r.mu.Lock()
	out := lo.Map(lo.Values(r.songs), func(s *song, _ int) Song { return s.Song })
	r.mu.Unlock()
	sortSongs(out)
	return out
}

func sortSongs(songs []Song) {
	sort.Slice(songs, func(i, j int) bool {
		if songs[i].Priority != songs[j].Priority {
			return songs[i].Priority > songs[j].Priority
		}
		return songs[i].Handle < songs[j].Handle
	})
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.songs)
}

func (r *Registry) MasterVolume() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

// SetMasterVolume clamps v to 0..MaxMasterVolume.
func (r *Registry) SetMasterVolume(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = min(max(v, 0), MaxMasterVolume)
}

func (r *Registry) Muted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted
}

func (r *Registry) SetMuted(muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muted = muted
}

func (r *Registry) Reverb() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reverb
}

// SetReverb stores a reverb mode and returns the previous one.
func (r *Registry) SetReverb(mode int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.reverb
	r.reverb = mode
	return prev
}

// SuspendAll pauses every playing song, or resumes the songs a previous
// SuspendAll paused.
func (r *Registry) SuspendAll(suspend bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.songs {
		switch {
		case suspend && s.Status == StatusPlaying:
			s.Status = StatusPaused
			s.pausedByGlobal = true
			n++
		case !suspend && s.pausedByGlobal:
			s.Status = StatusPlaying
			s.pausedByGlobal = false
			n++
		}
	}
	return n
}

// SendControl forwards a channel message for h to the player unless the
// registry is muted.
func (r *Registry) SendControl(h Handle, channel, status, controller, param int) {
	if r.Muted() || r.player == nil {
		return
	}
	r.player.SendControlMessage(h, channel, status, controller, param)
}

// Poll removes and returns the oldest pending event of any handle.
func (r *Registry) Poll() (Handle, PendingEvent, bool) {
	return r.events.pop()
}

// PollHandle removes and returns the oldest pending event of h.
func (r *Registry) PollHandle(h Handle) (PendingEvent, bool) {
	return r.events.popFor(h)
}

// Pending returns the number of queued events.
func (r *Registry) Pending() int {
	return r.events.len()
}

// Tick advances every playing song by the given number of ticks, queueing
// the cue, loop and finish events reached and forwarding channel messages
// to the player.
func (r *Registry) Tick(ticks int) {
	if ticks <= 0 {
		return
	}
	var out []controlMessage

	r.mu.Lock()
	playing := make([]*song, 0, len(r.songs))
	for _, s := range r.songs {
		if s.Status == StatusPlaying && s.it != nil {
			playing = append(playing, s)
		}
	}
	sort.Slice(playing, func(i, j int) bool {
		if playing[i].Priority != playing[j].Priority {
			return playing[i].Priority > playing[j].Priority
		}
		return playing[i].Handle < playing[j].Handle
	})
	for _, s := range playing {
		out = r.advanceLocked(s, ticks, out)
	}
	muted := r.muted
	r.mu.Unlock()

	if muted || r.player == nil {
		return
	}
	for _, m := range out {
		r.player.SendControlMessage(m.handle, m.channel, m.status, m.controller, m.data)
	}
}

func (r *Registry) advanceLocked(s *song, ticks int, out []controlMessage) []controlMessage {
	s.Elapsed += ticks
	budget := ticks
	for n := 0; n < maxEventsPerTick; n++ {
		if s.next == nil {
			ev, ok := s.it.Next()
			if !ok {
				r.finishLocked(s)
				return out
			}
			s.next = &ev
			s.wait = ev.Delta
		}
		if s.wait > budget {
			s.wait -= budget
			return out
		}
		budget -= s.wait
		s.wait = 0
		ev := *s.next
		s.next = nil

		switch ev.Kind {
		case StreamControl:
			out = append(out, controlMessage{
				handle:     s.Handle,
				channel:    ev.Status & 0x0f,
				status:     ev.Status & 0xf0,
				controller: ev.Data1,
				data:       ev.Data2,
			})
		case StreamAbsoluteCue:
			r.events.push(s.Handle, PendingEvent{Kind: EventAbsoluteCue, Cue: ev.Value})
		case StreamRelativeCue:
			r.events.push(s.Handle, PendingEvent{Kind: EventRelativeCue, Cue: ev.Value})
		case StreamHold:
			if s.Hold != 0 && ev.Value == s.Hold {
				s.it.Rewind(true)
			}
		case StreamEnd:
			if s.Loops != LoopForever && s.Loops <= 1 {
				r.finishLocked(s)
				return out
			}
			if s.Loops > 1 {
				s.Loops--
			}
			s.it.Rewind(true)
			r.events.push(s.Handle, PendingEvent{Kind: EventLooped})
		case StreamFinish:
			r.finishLocked(s)
			return out
		}
	}
	r.logger.Warn("song event budget exhausted", "handle", s.Handle.String(), "number", s.Number)
	return out
}

func (r *Registry) finishLocked(s *song) {
	r.stopLocked(s)
	r.events.push(s.Handle, PendingEvent{Kind: EventFinished})
}
