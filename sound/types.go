// Package sound interprets script sound commands. A Dispatcher decodes
// numbered commands against the opcode table of one protocol variant and
// drives a Registry of song handles; a Reconciler mirrors the events the
// registry produces back into script object fields.
package sound

import (
	"fmt"
	"time"

	"github.com/milk9111/dosound/resource"
)

// ObjectRef is the stable storage key of a script object. Zero is the null
// reference.
type ObjectRef uint64

const NullObject ObjectRef = 0

// Handle identifies one playback session. It is derived from the owning
// object's reference, so the same object always maps to the same handle.
type Handle uint64

func HandleOf(obj ObjectRef) Handle {
	return Handle(obj)
}

// Object returns the script object that owns h.
func (h Handle) Object() ObjectRef {
	return ObjectRef(h)
}

func (h Handle) String() string {
	return fmt.Sprintf("%04x:%04x", uint64(h)>>32, uint64(h)&0xffffffff)
}

// Status is a handle's playback state. The numeric values are the ones
// scripts see in the state field.
type Status int

const (
	StatusStopped Status = iota
	StatusInitialized
	StatusPaused
	StatusPlaying
)

const StatusSuspended = StatusPaused

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusInitialized:
		return "initialized"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Script object selectors touched by sound commands.
const (
	FieldNumber   = "number"
	FieldLoop     = "loop"
	FieldPriority = "pri"
	FieldVolume   = "vol"
	FieldFlags    = "flags"
	FieldSignal   = "signal"
	FieldState    = "state"
	FieldNodePtr  = "nodePtr"
	FieldHandle   = "handle"
	FieldDataInc  = "dataInc"
	FieldMin      = "min"
	FieldSec      = "sec"
	FieldFrame    = "frame"
)

const (
	// SignalStopped is written to the signal field when a handle stops.
	SignalStopped = 0xFFFF
	// SignalLooped shares the stopped marker; scripts tell the two apart by
	// the state field.
	SignalLooped = SignalStopped

	RelativeCueOffset = 0x7f

	// LoopForever repeats a song until it is stopped. Scripts may write it
	// as -1 or as the 16-bit 0xFFFF.
	LoopForever = -1

	// PriorityUnset asks for the priority embedded in the song asset.
	PriorityUnset = -1

	FlagMayPause         = 1
	FlagScriptedPriority = 2

	MaxMasterVolume   = 15
	DefaultHandleVol  = 127
	DefaultTickRateHz = 60
)

// Fields reads and writes named fields of script objects. Reference-valued
// fields carry the referenced ObjectRef converted to int64.
type Fields interface {
	Field(obj ObjectRef, name string) int64
	SetField(obj ObjectRef, name string, value int64)
	IsObject(obj ObjectRef) bool
}

// Resources looks up raw asset bytes.
type Resources interface {
	Find(typ resource.Type, number int, exact bool) ([]byte, bool)
	Exists(typ resource.Type, number int) bool
}

// Player is the low-level output the registry and dispatcher drive.
type Player interface {
	// StartVoice starts digital playback of data and returns its duration.
	StartVoice(h Handle, data []byte) (time.Duration, error)
	StopVoice(h Handle)
	SendControlMessage(h Handle, channel, status, controller, param int)
	Polyphony() int
}

// TicksFor converts a duration to whole ticks at rate hz, rounding up so a
// non-zero duration never becomes zero ticks.
func TicksFor(d time.Duration, hz int) int {
	if d <= 0 {
		return 0
	}
	if hz <= 0 {
		hz = DefaultTickRateHz
	}
	per := time.Second / time.Duration(hz)
	return int((d + per - 1) / per)
}
