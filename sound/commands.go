package sound

import (
	"fmt"

	"github.com/milk9111/dosound/resource"
)

type handlerFunc func(d *Dispatcher, c *call)

// commandTables lists each variant's commands by opcode. The order is what
// scripts compiled for that variant encode.
var commandTables = map[Variant][]string{
	SCI0Early: {
		"init", "play", "dummy", "dispose", "mute", "stop", "suspend",
		"resume", "volume", "priority", "fade", "polyphony", "playNext",
	},
	SCI1Early: {
		"volume", "mute", "dummy", "polyphony", "update", "init", "dispose",
		"play", "stop", "suspend", "fade", "updateCues", "sendMidi",
		"reverb", "hold",
	},
	SCI1Late: {
		"volume", "mute", "dummy", "polyphony", "audioCapability",
		"suspendSound", "init", "dispose", "play", "stop", "suspend", "fade",
		"hold", "dummy", "setVolume", "setPriority", "setLoop", "updateCues",
		"sendMidi", "reverb", "updateVolumePriority",
	},
}

var handlers = map[string]handlerFunc{
	"init":                 cmdInit,
	"play":                 cmdPlay,
	"dummy":                cmdDummy,
	"dispose":              cmdDispose,
	"mute":                 cmdMute,
	"stop":                 cmdStop,
	"suspend":              cmdSuspend,
	"resume":               cmdResume,
	"volume":               cmdVolume,
	"priority":             cmdPriority,
	"fade":                 cmdFade,
	"polyphony":            cmdPolyphony,
	"playNext":             cmdPlayNext,
	"update":               cmdUpdate,
	"updateCues":           cmdUpdateCues,
	"sendMidi":             cmdSendMidi,
	"reverb":               cmdReverb,
	"hold":                 cmdHold,
	"audioCapability":      cmdAudioCapability,
	"suspendSound":         cmdSuspendSound,
	"setVolume":            cmdSetVolume,
	"setPriority":          cmdSetPriority,
	"setLoop":              cmdSetLoop,
	"updateVolumePriority": cmdUpdateVolumePriority,
}

const (
	pitchWheelStatus    = 0xe0
	controlChangeStatus = 0xb0
	pitchWheelCtrl      = 0xff
	uint16Max           = 0xFFFF
)

func (d *Dispatcher) get(obj ObjectRef, name string) int64 {
	return d.fields.Field(obj, name)
}

func (d *Dispatcher) set(obj ObjectRef, name string, value int64) {
	d.fields.SetField(obj, name, value)
}

// loopsOf normalises a script loop count. Both -1 and its 16-bit form mean
// forever.
func loopsOf(v int64) int {
	if v == -1 || v == uint16Max {
		return LoopForever
	}
	return int(v)
}

// missing reports an absent asset and leaves the handle stopped and
// signalled so scripts waiting on it do not hang.
func (d *Dispatcher) missing(c *call, number int, cause error) {
	d.logger.Warn("could not open sound", "command", c.name, "object", c.handle.String(), "number", number)
	c.err = fmt.Errorf("sound: %s number %d: %w", c.name, number, cause)
	d.registry.SetStatus(c.handle, StatusStopped)
	d.set(c.obj, FieldSignal, SignalStopped)
	if !d.variant.HasNodePtr() {
		d.set(c.obj, FieldState, int64(StatusStopped))
	}
}

// build resolves a sound asset and registers a fresh iterator for it.
func (d *Dispatcher) build(c *call, number int) bool {
	data, ok := d.resources.Find(resource.TypeSound, number, false)
	if !ok {
		d.missing(c, number, ErrMissingAsset)
		return false
	}
	it, err := d.factory.Build(data, d.variant.IteratorType(), c.handle)
	if err != nil {
		d.missing(c, number, fmt.Errorf("%w: %w", ErrMissingAsset, err))
		return false
	}
	d.registry.Add(c.handle, it, 0, number)
	return true
}

// changeStatus sets the registry status and mirrors it into the state
// field where the variant keeps one.
func (d *Dispatcher) changeStatus(c *call, status Status) {
	if c.obj == NullObject {
		return
	}
	d.registry.SetStatus(c.handle, status)
	if !d.variant.HasNodePtr() {
		d.set(c.obj, FieldState, int64(status))
	}
}

func cmdInit(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	number := int(d.get(c.obj, FieldNumber))

	// A live entry is released before the new number is resolved, so a
	// failed re-init never leaves the old song playable.
	if d.registry.Has(c.handle) {
		d.registry.SetStatus(c.handle, StatusStopped)
		d.registry.Remove(c.handle)
	}

	if d.variant == SCI1Late && !d.resources.Exists(resource.TypeSound, number) &&
		d.digitalAudio && d.resources.Exists(resource.TypeAudio, number) {
		d.logger.Debug("deferring audio init to play", "object", c.handle.String(), "number", number)
		return
	}

	if !d.build(c, number) {
		if d.variant.HasNodePtr() {
			d.set(c.obj, FieldNodePtr, 0)
		}
		return
	}

	if d.variant.HasNodePtr() {
		d.set(c.obj, FieldNodePtr, int64(c.obj))
	} else {
		d.set(c.obj, FieldState, int64(StatusInitialized))
	}
	d.set(c.obj, FieldHandle, int64(c.obj))
}

func cmdPlay(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	switch d.variant {
	case SCI0Early:
		if !d.play(c) {
			return
		}
		d.set(c.obj, FieldState, int64(StatusPlaying))
	case SCI1Early:
		if !d.play(c) {
			return
		}
		d.registry.SetPriority(c.handle, int(d.get(c.obj, FieldPriority)))
		d.registry.SetRestoreBehavior(c.handle, c.value)
		d.set(c.obj, FieldSignal, 0)
	case SCI1Late:
		d.playLate(c)
	}
}

// play starts a registered handle with the object's loop count.
func (d *Dispatcher) play(c *call) bool {
	if !d.registry.Has(c.handle) {
		d.missing(c, int(d.get(c.obj, FieldNumber)), ErrMissingAsset)
		return false
	}
	d.registry.SetStatus(c.handle, StatusPlaying)
	d.registry.SetLoops(c.handle, loopsOf(d.get(c.obj, FieldLoop)))
	return true
}

func (d *Dispatcher) playLate(c *call) {
	number := int(d.get(c.obj, FieldNumber))

	if d.get(c.obj, FieldNodePtr) != 0 {
		s, ok := d.registry.Song(c.handle)
		if !ok || s.Number != number || (s.Voice && s.Status == StatusStopped) {
			d.registry.SetStatus(c.handle, StatusStopped)
			d.registry.Remove(c.handle)
			d.set(c.obj, FieldNodePtr, 0)
		}
	}

	if d.get(c.obj, FieldNodePtr) == 0 {
		switch {
		case d.digitalAudio && d.resources.Exists(resource.TypeAudio, number):
			if !d.startVoice(c, number) {
				return
			}
		case d.resources.Exists(resource.TypeSound, number):
			d.logger.Debug("initializing song", "object", c.handle.String(), "number", number)
			if !d.build(c, number) {
				return
			}
		default:
			d.missing(c, number, ErrMissingAsset)
			return
		}
		d.set(c.obj, FieldNodePtr, int64(c.obj))
		d.set(c.obj, FieldHandle, int64(c.obj))
	}

	d.registry.SetStatus(c.handle, StatusPlaying)
	d.registry.SetLoops(c.handle, loopsOf(d.get(c.obj, FieldLoop)))
	d.registry.SetPriority(c.handle, int(d.get(c.obj, FieldPriority)))
	d.set(c.obj, FieldSignal, 0)
}

// startVoice plays an audio asset in place of a sound and registers a timer
// that finishes the handle when the voice ends.
func (d *Dispatcher) startVoice(c *call, number int) bool {
	data, ok := d.resources.Find(resource.TypeAudio, number, false)
	if !ok {
		d.missing(c, number, ErrMissingAsset)
		return false
	}
	d.logger.Info("playing audio asset in place of sound", "object", c.handle.String(), "number", number)

	d.registry.Remove(c.handle)
	if n := d.registry.StopVoices(); n > 0 {
		d.logger.Debug("stopped digital voices", "count", n)
	}
	d.player.StopVoice(c.handle)
	dur, err := d.player.StartVoice(c.handle, data)
	if err != nil {
		d.missing(c, number, fmt.Errorf("%w: %w", ErrMissingAsset, err))
		return false
	}
	d.registry.Add(c.handle, NewTimerIterator(TicksFor(dur, d.tickRate)), 0, number)
	d.registry.AttachVoice(c.handle)
	return true
}

func cmdDummy(d *Dispatcher, c *call) {
	d.logger.Warn("dummy sound command invoked", "object", c.handle.String())
}

func cmdDispose(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	d.changeStatus(c, StatusStopped)
	d.registry.Remove(c.handle)
	if !d.variant.HasNodePtr() {
		d.set(c.obj, FieldHandle, 0)
	}
}

func cmdStop(d *Dispatcher, c *call) {
	d.changeStatus(c, StatusStopped)
	if d.variant.HasNodePtr() && c.obj != NullObject {
		d.set(c.obj, FieldSignal, SignalStopped)
	}
}

func cmdSuspend(d *Dispatcher, c *call) {
	if !d.variant.HasNodePtr() || c.value != 0 {
		d.changeStatus(c, StatusSuspended)
		return
	}
	d.changeStatus(c, StatusPlaying)
}

func cmdResume(d *Dispatcher, c *call) {
	d.changeStatus(c, StatusPlaying)
}

// cmdMute sets the mute state when an operand is given and returns it.
func cmdMute(d *Dispatcher, c *call) {
	if v, ok := c.operand(0); ok && v != uint16Max {
		d.registry.SetMuted(v != 0)
	}
	c.acc = 0
	if d.registry.Muted() {
		c.acc = 1
	}
}

// cmdVolume sets the master volume when an operand is given and returns it.
func cmdVolume(d *Dispatcher, c *call) {
	if v, ok := c.operand(0); ok && v != uint16Max {
		d.registry.SetMasterVolume(int(int16(uint16(v))))
	}
	c.acc = int64(d.registry.MasterVolume())
}

func cmdPriority(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	d.registry.SetLoops(c.handle, loopsOf(d.get(c.obj, FieldLoop)))
	d.setPriority(c, int(d.get(c.obj, FieldPriority)))
}

func cmdSetPriority(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	d.setPriority(c, c.value)
}

// setPriority applies a script priority. PriorityUnset falls back to the
// priority stored in the song header and clears the scripted flag.
func (d *Dispatcher) setPriority(c *call, priority int) {
	flags := d.get(c.obj, FieldFlags)
	if priority == PriorityUnset || priority == uint16Max {
		number := int(d.get(c.obj, FieldNumber))
		data, _ := d.resources.Find(resource.TypeSound, number, false)
		if p, ok := EmbeddedPriority(data); ok {
			priority = p
		} else {
			d.logger.Warn("no embedded priority to restore", "object", c.handle.String(), "number", number)
			priority = PriorityUnset
		}
		flags &^= FlagScriptedPriority
	} else {
		flags |= FlagScriptedPriority
	}
	d.registry.SetPriority(c.handle, priority)
	d.set(c.obj, FieldFlags, flags)
	d.set(c.obj, FieldPriority, int64(priority))
}

// cmdFade records the fade parameters and stops the handle right away.
func cmdFade(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	if len(c.operands) >= 5 {
		d.registry.SetFade(c.handle, FadeParams{
			FinalVolume:  int(uint16(c.operands[1])),
			TicksPerStep: int(uint16(c.operands[2])),
			StepSize:     int(uint16(c.operands[3])),
			StopOnDone:   uint16(c.operands[4]) != 0,
		})
	}
	d.changeStatus(c, StatusStopped)
	d.set(c.obj, FieldSignal, SignalStopped)
}

func cmdPolyphony(d *Dispatcher, c *call) {
	c.acc = int64(d.player.Polyphony())
}

func cmdPlayNext(*Dispatcher, *call) {}

func cmdUpdate(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	d.registry.SetLoops(c.handle, loopsOf(d.get(c.obj, FieldLoop)))
	d.registry.SetPriority(c.handle, int(d.get(c.obj, FieldPriority)))
	d.writeTiming(c)
}

// cmdUpdateCues surfaces the first non-loop event of the handle.
func cmdUpdateCues(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	if ev, ok := d.nextCue(c.handle); ok {
		switch ev.Kind {
		case EventAbsoluteCue:
			d.logger.Debug("absolute cue", "object", c.handle.String(), "cue", ev.Cue)
			d.set(c.obj, FieldSignal, int64(ev.Cue))
		case EventRelativeCue:
			d.logger.Debug("relative cue", "object", c.handle.String(), "cue", ev.Cue)
			d.set(c.obj, FieldDataInc, int64(ev.Cue))
			d.set(c.obj, FieldSignal, int64(ev.Cue+RelativeCueOffset))
		case EventFinished:
			d.logger.Debug("finished", "object", c.handle.String())
			d.set(c.obj, FieldSignal, SignalStopped)
		}
	}
	d.writeTiming(c)
}

func (d *Dispatcher) nextCue(h Handle) (PendingEvent, bool) {
	for {
		ev, ok := d.registry.PollHandle(h)
		if !ok || ev.Kind != EventLooped {
			return ev, ok
		}
	}
}

func (d *Dispatcher) writeTiming(c *call) {
	var elapsed int
	if s, ok := d.registry.Song(c.handle); ok {
		elapsed = s.Elapsed
	}
	perMinute := d.tickRate * 60
	d.set(c.obj, FieldMin, int64(elapsed/perMinute))
	d.set(c.obj, FieldSec, int64(elapsed%perMinute/d.tickRate))
	d.set(c.obj, FieldFrame, int64(elapsed%d.tickRate))
}

func cmdSendMidi(d *Dispatcher, c *call) {
	ctrl, ok := c.operand(2)
	if !ok {
		return
	}
	param, ok := c.operand(3)
	if !ok {
		return
	}
	status := controlChangeStatus
	if uint16(ctrl) == pitchWheelCtrl {
		status = pitchWheelStatus
	}
	d.registry.SendControl(c.handle, c.value, status, int(uint16(ctrl)), int(uint16(param)))
}

func cmdReverb(d *Dispatcher, c *call) {
	v, ok := c.operand(0)
	if !ok || v == uint16Max {
		c.acc = int64(d.registry.Reverb())
		return
	}
	c.acc = int64(d.registry.SetReverb(int(uint16(v) & 0xf)))
}

func cmdHold(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	d.registry.SetHold(c.handle, c.value)
}

func cmdAudioCapability(d *Dispatcher, c *call) {
	c.acc = 0
	if d.digitalAudio {
		c.acc = 1
	}
}

func cmdSuspendSound(d *Dispatcher, c *call) {
	v, _ := c.operand(0)
	n := d.registry.SuspendAll(v != 0)
	d.logger.Debug("suspend all", "suspend", v != 0, "handles", n)
}

func cmdSetVolume(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	d.registry.SetVolume(c.handle, c.value)
	d.set(c.obj, FieldVolume, int64(c.value))
}

// cmdSetLoop only distinguishes forever from once.
func cmdSetLoop(d *Dispatcher, c *call) {
	if c.obj == NullObject || d.get(c.obj, FieldNodePtr) == 0 {
		return
	}
	loops := 1
	if c.value == LoopForever {
		loops = LoopForever
	}
	d.registry.SetLoops(c.handle, loops)
	d.set(c.obj, FieldLoop, int64(loops))
}

func cmdUpdateVolumePriority(d *Dispatcher, c *call) {
	if c.obj == NullObject {
		return
	}
	d.registry.SetVolume(c.handle, int(d.get(c.obj, FieldVolume)))
	d.registry.SetPriority(c.handle, int(d.get(c.obj, FieldPriority)))
}
