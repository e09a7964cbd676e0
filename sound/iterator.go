package sound

import (
	"errors"
	"fmt"
)

// IteratorType selects the song stream dialect.
type IteratorType int

const (
	IteratorSCI0 IteratorType = iota + 1
	IteratorSCI1
)

func (t IteratorType) String() string {
	switch t {
	case IteratorSCI0:
		return "sci0"
	case IteratorSCI1:
		return "sci1"
	default:
		return fmt.Sprintf("iterator(%d)", int(t))
	}
}

// StreamKind classifies an iterator event.
type StreamKind int

const (
	// StreamControl is a channel message for the player.
	StreamControl StreamKind = iota + 1
	StreamAbsoluteCue
	StreamRelativeCue
	// StreamHold marks a hold point; Value is its id.
	StreamHold
	// StreamEnd is the end of the track. The song may loop.
	StreamEnd
	// StreamFinish ends playback unconditionally.
	StreamFinish
)

// StreamEvent is one step of a song. Delta is the number of ticks to wait
// after the previous event.
type StreamEvent struct {
	Delta  int
	Kind   StreamKind
	Status int
	Data1  int
	Data2  int
	Value  int
}

// Iterator is a lazy, restartable sequence of stream events. Next reports
// false once the sequence is exhausted; Rewind makes it usable again.
type Iterator interface {
	Next() (StreamEvent, bool)
	Rewind(toLoopPoint bool)
	Close() error
}

// IteratorFactory builds iterators from raw song bytes.
type IteratorFactory interface {
	Build(data []byte, typ IteratorType, h Handle) (Iterator, error)
}

// IteratorFactoryFunc adapts a function to IteratorFactory.
type IteratorFactoryFunc func(data []byte, typ IteratorType, h Handle) (Iterator, error)

func (f IteratorFactoryFunc) Build(data []byte, typ IteratorType, h Handle) (Iterator, error) {
	return f(data, typ, h)
}

var ErrEmptySong = errors.New("sound: empty song data")

// StreamFactory builds iterators over the song stream format.
type StreamFactory struct{}

func (StreamFactory) Build(data []byte, typ IteratorType, _ Handle) (Iterator, error) {
	return NewStreamIterator(data, typ)
}

const (
	priorityMarker = 0xf0
	waitMarker     = 0xf8
	waitTicks      = 240
	endOfTrack     = 0xfc

	controlChannel = 0x0f
	loopPointCue   = 127
	ctrlRelCue     = 0x60
	ctrlHold       = 0x52
)

// EmbeddedPriority returns the default priority stored in a song header.
func EmbeddedPriority(data []byte) (int, bool) {
	if len(data) >= 2 && data[0] == priorityMarker {
		return int(data[1]), true
	}
	return 0, false
}

type streamIterator struct {
	data []byte
	typ  IteratorType

	start   int
	pos     int
	running byte

	loopPos     int
	loopRunning byte

	ended  bool
	closed bool
}

// NewStreamIterator parses a song stream lazily. The stream is an optional
// 0xf0 priority header followed by events of the form
// <delta> [status] <data...>, where 0xf8 adds 240 ticks of delay and MIDI
// running status applies. Channel 15 carries the control events: program
// change 127 sets the loop point, other program changes are absolute cues,
// controller 0x60 is a relative cue and controller 0x52 a hold marker
// (SCI1 streams only). 0xfc ends the track.
func NewStreamIterator(data []byte, typ IteratorType) (Iterator, error) {
	if len(data) == 0 {
		return nil, ErrEmptySong
	}
	start := 0
	if _, ok := EmbeddedPriority(data); ok {
		start = 2
	}
	return &streamIterator{
		data:    data,
		typ:     typ,
		start:   start,
		pos:     start,
		loopPos: start,
	}, nil
}

func (s *streamIterator) Next() (StreamEvent, bool) {
	if s.closed || s.ended {
		return StreamEvent{}, false
	}
	delta := 0
	for {
		for s.pos < len(s.data) && s.data[s.pos] == waitMarker {
			delta += waitTicks
			s.pos++
		}
		if s.pos >= len(s.data) {
			return s.end(delta), true
		}
		delta += int(s.data[s.pos])
		s.pos++
		if s.pos >= len(s.data) {
			return s.end(delta), true
		}

		status := s.data[s.pos]
		if status >= 0x80 {
			s.pos++
			if status < 0xf0 {
				s.running = status
			}
		} else if s.running != 0 {
			status = s.running
		} else {
			return s.end(delta), true
		}

		if status >= 0xf0 {
			// Only end-of-track is valid here; anything else is corrupt.
			return s.end(delta), true
		}

		n := channelDataLen(status)
		if s.pos+n > len(s.data) {
			return s.end(delta), true
		}
		d1 := int(s.data[s.pos])
		d2 := 0
		if n == 2 {
			d2 = int(s.data[s.pos+1])
		}
		s.pos += n

		if int(status&0x0f) != controlChannel {
			return StreamEvent{Delta: delta, Kind: StreamControl, Status: int(status), Data1: d1, Data2: d2}, true
		}

		switch status & 0xf0 {
		case 0xc0:
			if d1 == loopPointCue {
				s.loopPos = s.pos
				s.loopRunning = s.running
				continue
			}
			return StreamEvent{Delta: delta, Kind: StreamAbsoluteCue, Value: d1}, true
		case 0xb0:
			switch {
			case d1 == ctrlRelCue:
				return StreamEvent{Delta: delta, Kind: StreamRelativeCue, Value: d2}, true
			case d1 == ctrlHold && s.typ == IteratorSCI1:
				return StreamEvent{Delta: delta, Kind: StreamHold, Value: d2}, true
			}
		}
		return StreamEvent{Delta: delta, Kind: StreamControl, Status: int(status), Data1: d1, Data2: d2}, true
	}
}

func (s *streamIterator) end(delta int) StreamEvent {
	s.ended = true
	return StreamEvent{Delta: delta, Kind: StreamEnd}
}

func (s *streamIterator) Rewind(toLoopPoint bool) {
	s.ended = false
	if toLoopPoint {
		s.pos = s.loopPos
		s.running = s.loopRunning
		return
	}
	s.pos = s.start
	s.running = 0
	s.loopPos = s.start
	s.loopRunning = 0
}

func (s *streamIterator) Close() error {
	s.closed = true
	return nil
}

func channelDataLen(status byte) int {
	switch status & 0xf0 {
	case 0xc0, 0xd0:
		return 1
	}
	return 2
}

type timerIterator struct {
	ticks  int
	fired  bool
	closed bool
}

// NewTimerIterator returns an iterator whose only event finishes playback
// after the given number of ticks.
func NewTimerIterator(ticks int) Iterator {
	if ticks < 0 {
		ticks = 0
	}
	return &timerIterator{ticks: ticks}
}

func (t *timerIterator) Next() (StreamEvent, bool) {
	if t.closed || t.fired {
		return StreamEvent{}, false
	}
	t.fired = true
	return StreamEvent{Delta: t.ticks, Kind: StreamFinish}, true
}

func (t *timerIterator) Rewind(bool) {
	t.fired = false
}

func (t *timerIterator) Close() error {
	t.closed = true
	return nil
}
