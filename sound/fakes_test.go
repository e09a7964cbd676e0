package sound

import (
	"errors"
	"sync"
	"time"
)

type fakeFields struct {
	mu      sync.Mutex
	objects map[ObjectRef]map[string]int64
	writes  []fieldWrite
}

type fieldWrite struct {
	obj   ObjectRef
	name  string
	value int64
}

func newFakeFields() *fakeFields {
	return &fakeFields{objects: map[ObjectRef]map[string]int64{}}
}

func (f *fakeFields) object(obj ObjectRef, fields map[string]int64) ObjectRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := make(map[string]int64, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	f.objects[obj] = m
	return obj
}

func (f *fakeFields) destroy(obj ObjectRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, obj)
}

func (f *fakeFields) Field(obj ObjectRef, name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[obj][name]
}

func (f *fakeFields) SetField(obj ObjectRef, name string, value int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.objects[obj]; ok {
		m[name] = value
	}
	f.writes = append(f.writes, fieldWrite{obj: obj, name: name, value: value})
}

func (f *fakeFields) IsObject(obj ObjectRef) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[obj]
	return ok
}

func (f *fakeFields) wrote(obj ObjectRef, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.writes {
		if w.obj == obj && w.name == name {
			return true
		}
	}
	return false
}

type midiMessage struct {
	handle                             Handle
	channel, status, controller, param int
}

type fakePlayer struct {
	mu        sync.Mutex
	duration  time.Duration
	startErr  error
	polyphony int
	started   []Handle
	stopped   []Handle
	messages  []midiMessage
}

func (p *fakePlayer) StartVoice(h Handle, _ []byte) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return 0, p.startErr
	}
	p.started = append(p.started, h)
	return p.duration, nil
}

func (p *fakePlayer) StopVoice(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = append(p.stopped, h)
}

func (p *fakePlayer) SendControlMessage(h Handle, channel, status, controller, param int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, midiMessage{h, channel, status, controller, param})
}

func (p *fakePlayer) Polyphony() int {
	return p.polyphony
}

func (p *fakePlayer) sent() []midiMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]midiMessage(nil), p.messages...)
}

// scriptedIterator replays a fixed event list and counts lifecycle calls.
type scriptedIterator struct {
	events  []StreamEvent
	loopAt  int
	pos     int
	rewinds int
	closes  int
}

func (s *scriptedIterator) Next() (StreamEvent, bool) {
	if s.pos >= len(s.events) {
		return StreamEvent{}, false
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true
}

func (s *scriptedIterator) Rewind(toLoopPoint bool) {
	s.rewinds++
	if toLoopPoint {
		s.pos = s.loopAt
		return
	}
	s.pos = 0
}

func (s *scriptedIterator) Close() error {
	s.closes++
	return nil
}

// recordingFactory hands out scripted iterators and remembers them.
type recordingFactory struct {
	events []StreamEvent
	built  []*scriptedIterator
	types  []IteratorType
	err    error
}

func (f *recordingFactory) Build(_ []byte, typ IteratorType, _ Handle) (Iterator, error) {
	if f.err != nil {
		return nil, f.err
	}
	it := &scriptedIterator{events: f.events}
	f.built = append(f.built, it)
	f.types = append(f.types, typ)
	return it, nil
}

func (f *recordingFactory) last() *scriptedIterator {
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

var errVoice = errors.New("voice failed")
