package sound

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSong = []byte{
	0xf0, 5,
	0, 0x90, 60, 100,
	10, 60, 0,
	0xf8, 5, 0xcf, 127,
	0, 0xcf, 3,
	2, 0xbf, 0x60, 4,
	1, 0xbf, 0x52, 1,
	0, 0xfc,
}

func collect(it Iterator) []StreamEvent {
	var out []StreamEvent
	for {
		ev, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestStreamIterator(t *testing.T) {
	cases := []struct {
		name string
		typ  IteratorType
		hold StreamEvent
	}{
		{"sci1", IteratorSCI1, StreamEvent{Delta: 1, Kind: StreamHold, Value: 1}},
		{"sci0", IteratorSCI0, StreamEvent{Delta: 1, Kind: StreamControl, Status: 0xbf, Data1: 0x52, Data2: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			it, err := NewStreamIterator(testSong, c.typ)
			require.NoError(t, err)

			assert.Equal(t, []StreamEvent{
				{Delta: 0, Kind: StreamControl, Status: 0x90, Data1: 60, Data2: 100},
				{Delta: 10, Kind: StreamControl, Status: 0x90, Data1: 60, Data2: 0},
				{Delta: 245, Kind: StreamAbsoluteCue, Value: 3},
				{Delta: 2, Kind: StreamRelativeCue, Value: 4},
				c.hold,
				{Delta: 0, Kind: StreamEnd},
			}, collect(it))

			_, ok := it.Next()
			assert.False(t, ok, "exhausted until rewound")
		})
	}
}

func TestStreamIteratorRewind(t *testing.T) {
	it, err := NewStreamIterator(testSong, IteratorSCI1)
	require.NoError(t, err)
	collect(it)

	it.Rewind(true)
	ev, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, StreamEvent{Kind: StreamAbsoluteCue, Value: 3}, ev)

	it.Rewind(false)
	ev, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, StreamEvent{Kind: StreamControl, Status: 0x90, Data1: 60, Data2: 100}, ev)
	assert.Len(t, collect(it), 5)

	require.NoError(t, it.Close())
	it.Rewind(false)
	_, ok = it.Next()
	assert.False(t, ok, "closed iterators stay closed")
}

func TestStreamIteratorTruncated(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want []StreamEvent
	}{
		{"delta_only", []byte{7}, []StreamEvent{{Delta: 7, Kind: StreamEnd}}},
		{"short_message", []byte{0, 0x90, 60}, []StreamEvent{{Kind: StreamEnd}}},
		{"no_running_status", []byte{0, 60, 1}, []StreamEvent{{Kind: StreamEnd}}},
		{"sysex", []byte{3, 0xf7}, []StreamEvent{{Delta: 3, Kind: StreamEnd}}},
		{"header_only", []byte{0xf0, 9}, []StreamEvent{{Kind: StreamEnd}}},
		{"program_change", []byte{0, 0xc1, 5, 0, 0xfc}, []StreamEvent{
			{Kind: StreamControl, Status: 0xc1, Data1: 5},
			{Kind: StreamEnd},
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			it, err := NewStreamIterator(c.data, IteratorSCI1)
			require.NoError(t, err)
			assert.Equal(t, c.want, collect(it))
		})
	}
}

func TestStreamFactory(t *testing.T) {
	_, err := StreamFactory{}.Build(nil, IteratorSCI0, 1)
	assert.ErrorIs(t, err, ErrEmptySong)

	it, err := StreamFactory{}.Build(testSong, IteratorSCI0, 1)
	require.NoError(t, err)
	assert.NotNil(t, it)

	f := IteratorFactoryFunc(func(data []byte, typ IteratorType, h Handle) (Iterator, error) {
		return NewTimerIterator(len(data)), nil
	})
	it, err = f.Build([]byte{1, 2, 3}, IteratorSCI1, 1)
	require.NoError(t, err)
	ev, _ := it.Next()
	assert.Equal(t, 3, ev.Delta)
}

func TestEmbeddedPriority(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		want   int
		wantOK bool
	}{
		{"header", []byte{0xf0, 12, 0}, 12, true},
		{"no_header", []byte{0, 0xfc}, 0, false},
		{"short", []byte{0xf0}, 0, false},
		{"nil", nil, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := EmbeddedPriority(c.data)
			assert.Equal(t, c.wantOK, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestTimerIterator(t *testing.T) {
	it := NewTimerIterator(30)
	assert.Equal(t, []StreamEvent{{Delta: 30, Kind: StreamFinish}}, collect(it))
	it.Rewind(false)
	assert.Len(t, collect(it), 1)

	assert.Equal(t, []StreamEvent{{Kind: StreamFinish}}, collect(NewTimerIterator(-4)))
}

func TestTicksFor(t *testing.T) {
	cases := []struct {
		d    time.Duration
		hz   int
		want int
	}{
		{time.Second, 60, 60},
		{time.Millisecond, 60, 1},
		{1500 * time.Millisecond, 60, 90},
		{0, 60, 0},
		{time.Second, 0, DefaultTickRateHz},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TicksFor(c.d, c.hz), "%s at %d Hz", c.d, c.hz)
	}
}

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{
		"sci0":       SCI0Early,
		"SCI0_EARLY": SCI0Early,
		"sci1early":  SCI1Early,
		"sci1-early": SCI1Early,
		"sci1late":   SCI1Late,
		"SCI1.1":     0,
		"":           0,
	}
	for in, want := range cases {
		got, err := ParseVariant(in)
		if want == 0 {
			assert.ErrorIs(t, err, ErrUnknownVariant, in)
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, must(ParseVariant(got.String())))
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestHandleIdentity(t *testing.T) {
	h := HandleOf(objA)
	assert.Equal(t, objA, h.Object())
	assert.Equal(t, "0001:0001", h.String())
	assert.Equal(t, NullObject, Handle(0).Object())
}

func TestEventQueueDrop(t *testing.T) {
	var q eventQueue
	q.push(1, PendingEvent{Kind: EventLooped})
	q.push(2, PendingEvent{Kind: EventFinished})
	q.push(1, PendingEvent{Kind: EventAbsoluteCue, Cue: 4})

	assert.Equal(t, 2, q.drop(1))
	h, ev, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, Handle(2), h)
	assert.Equal(t, "finished", ev.String())
	assert.Zero(t, q.len())
	assert.Equal(t, "absolute-cue(4)", PendingEvent{Kind: EventAbsoluteCue, Cue: 4}.String())
}
