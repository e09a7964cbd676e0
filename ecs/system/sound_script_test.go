package system

import (
	"io"
	"log/slog"
	"testing"

	"github.com/milk9111/dosound/audio"
	"github.com/milk9111/dosound/ecs"
	"github.com/milk9111/dosound/ecs/component"
	"github.com/milk9111/dosound/resource"
	"github.com/milk9111/dosound/sound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cueSong raises absolute cue 3 immediately and ends ten ticks later.
var cueSong = []byte{0, 0xcf, 3, 10, 0xfc}

type scriptHarness struct {
	world    *ecs.World
	sched    *ecs.Scheduler
	scripts  *SoundScriptSystem
	events   *SoundEventSystem
	d        *sound.Dispatcher
	player   *audio.NullPlayer
	bank     *resource.Bank
	scriptID ecs.Entity
}

func newScriptHarness(t *testing.T, variant sound.Variant, src string) *scriptHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := ecs.NewWorld()
	bank := resource.NewBank()
	bank.Add(resource.TypeSound, 42, cueSong)
	player := audio.NewNullPlayer(44100)

	d, err := sound.New(variant, sound.Deps{
		Fields:    ObjectFields{World: w},
		Resources: bank,
		Player:    player,
	}, sound.WithLogger(logger))
	require.NoError(t, err)

	h := &scriptHarness{
		world:   w,
		d:       d,
		player:  player,
		bank:    bank,
		scripts: NewSoundScriptSystem(d, nil, logger),
		events:  NewSoundEventSystem(d, logger),
	}
	h.sched = ecs.NewScheduler(h.scripts, NewSoundPlaybackSystem(d.Registry()), h.events)

	h.scriptID = ecs.CreateEntity(w)
	require.NoError(t, ecs.Add(w, h.scriptID, component.SoundScriptComponent.Kind(), &component.SoundScript{
		Path:   "test.tengo",
		Source: []byte(src),
	}))
	return h
}

func (h *scriptHarness) runUntilDone(limit int) int {
	for i := 0; i < limit; i++ {
		if h.scripts.Done(h.world) {
			return i
		}
		h.sched.Update(h.world)
	}
	return limit
}

func (h *scriptHarness) selfField(name string) int64 {
	return ObjectFields{World: h.world}.Field(sound.ObjectRef(h.scriptID), name)
}

const reconcileScript = `
setup := func(engine, state) {
	state.music = engine.new_object("music", {number: 42, loop: 1})
	engine.sound("init", state.music)
	engine.sound("play", state.music)
}

update := func(engine, state) {
	sig := engine.get(state.music, "signal")
	if sig == 3 {
		engine.set(engine.self, "cue", sig)
	}
	if sig == 65535 {
		engine.set(engine.self, "state", engine.get(state.music, "state"))
		engine.set(engine.self, "finished_at", engine.tick())
		engine.quit()
	}
}
`

func TestSoundScriptReconciledSignals(t *testing.T) {
	h := newScriptHarness(t, sound.SCI0Early, reconcileScript)

	n := h.runUntilDone(100)
	require.Less(t, n, 100, "script never finished")

	assert.Equal(t, int64(3), h.selfField("cue"))
	assert.Equal(t, int64(sound.StatusStopped), h.selfField("state"))
	assert.Equal(t, int64(10), h.selfField("finished_at"))
	assert.Zero(t, h.events.Stale)
}

const updateCuesScript = `
setup := func(engine, state) {
	state.music = engine.new_object("music", {number: 42, loop: 1})
	engine.sound("play", state.music)
	state.cues = 0
}

update := func(engine, state) {
	engine.sound("updateCues", state.music)
	sig := engine.get(state.music, "signal")
	if sig == 3 {
		state.cues = state.cues + 1
		engine.set(state.music, "signal", 0)
	}
	if sig == 65535 {
		engine.set(engine.self, "cues", state.cues)
		engine.set(engine.self, "status_stopped", engine.status(state.music) == "stopped" ? 1 : 0)
		engine.quit()
	}
}
`

func TestSoundScriptPollsCues(t *testing.T) {
	h := newScriptHarness(t, sound.SCI1Late, updateCuesScript)

	n := h.runUntilDone(100)
	require.Less(t, n, 100, "script never finished")
	assert.Equal(t, int64(1), h.selfField("cues"))
	assert.Equal(t, int64(1), h.selfField("status_stopped"))
}

const accumulatorScript = `
setup := func(engine, state) {
	engine.set(engine.self, "volume", engine.sound("volume", 9))
	engine.set(engine.self, "raw", engine.do_sound(engine.opcode("volume")))
	engine.set(engine.self, "polyphony", engine.sound("polyphony"))
	engine.set(engine.self, "missing", engine.opcode("teleport"))
	engine.quit()
}
update := func(engine, state) {}
`

func TestSoundScriptAccumulator(t *testing.T) {
	h := newScriptHarness(t, sound.SCI1Early, accumulatorScript)
	h.runUntilDone(5)

	assert.Equal(t, int64(9), h.selfField("volume"))
	assert.Equal(t, int64(9), h.selfField("raw"))
	assert.Equal(t, int64(audio.DefaultPolyphony), h.selfField("polyphony"))
	assert.Equal(t, int64(-1), h.selfField("missing"))
}

const destroyScript = `
setup := func(engine, state) {
	music := engine.new_object("music", {number: 42, loop: -1})
	engine.sound("init", music)
	engine.sound("play", music)
	engine.set(engine.self, "music", music)
	engine.set(engine.self, "destroyed", engine.destroy_object(music) ? 1 : 0)
}
update := func(engine, state) {
	if engine.tick() > 30 {
		engine.quit()
	}
}
`

func TestSoundScriptDestroyDisposesSong(t *testing.T) {
	for _, v := range sound.Variants() {
		t.Run(v.String(), func(t *testing.T) {
			h := newScriptHarness(t, v, destroyScript)
			n := h.runUntilDone(100)
			require.Less(t, n, 100, "script never finished")

			assert.Equal(t, int64(1), h.selfField("destroyed"))
			music := sound.ObjectRef(h.selfField("music"))
			assert.False(t, h.d.Registry().Has(sound.HandleOf(music)))
			assert.Zero(t, h.d.Registry().Len())
			assert.Zero(t, h.events.Stale)
		})
	}
}

func TestSoundScriptCompileError(t *testing.T) {
	h := newScriptHarness(t, sound.SCI0Early, `update := func(engine, state) {}`)
	h.sched.Update(h.world)

	sc, ok := ecs.Get(h.world, h.scriptID, component.SoundScriptComponent.Kind())
	require.True(t, ok)
	assert.True(t, sc.Done, "scripts without setup are rejected")
	assert.True(t, h.scripts.Done(h.world))
}

func TestSoundScriptLoader(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := ecs.NewWorld()
	d, err := sound.New(sound.SCI1Late, sound.Deps{
		Fields:    ObjectFields{World: w},
		Resources: resource.NewBank(),
		Player:    audio.NewNullPlayer(0),
	}, sound.WithLogger(logger))
	require.NoError(t, err)

	loaded := ""
	sys := NewSoundScriptSystem(d, func(path string) ([]byte, error) {
		loaded = path
		return []byte(`setup := func(e, s) { e.quit() }
update := func(e, s) {}`), nil
	}, logger)

	e := ecs.CreateEntity(w)
	require.NoError(t, ecs.Add(w, e, component.SoundScriptComponent.Kind(), &component.SoundScript{Path: "demo.tengo"}))
	sys.Update(w)

	assert.Equal(t, "demo.tengo", loaded)
	assert.True(t, sys.Done(w))
	assert.True(t, ecs.Has(w, e, component.ScriptObjectComponent.Kind()))
}

func TestObjectFields(t *testing.T) {
	w := ecs.NewWorld()
	f := ObjectFields{World: w}

	ref, err := NewObject(w, "sound", map[string]int64{sound.FieldNumber: 5})
	require.NoError(t, err)
	assert.True(t, f.IsObject(ref))
	assert.Equal(t, int64(5), f.Field(ref, sound.FieldNumber))

	f.SetField(ref, sound.FieldSignal, 7)
	assert.Equal(t, int64(7), f.Field(ref, sound.FieldSignal))

	bare := ecs.CreateEntity(w)
	assert.False(t, f.IsObject(sound.ObjectRef(bare)))
	f.SetField(sound.ObjectRef(bare), sound.FieldSignal, 1)
	assert.Zero(t, f.Field(sound.ObjectRef(bare), sound.FieldSignal))

	require.True(t, ecs.DestroyEntity(w, ecs.Entity(ref)))
	assert.False(t, f.IsObject(ref))
	assert.False(t, f.IsObject(sound.NullObject))
}
