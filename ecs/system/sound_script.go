package system

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/dosound/ecs"
	"github.com/milk9111/dosound/ecs/component"
	"github.com/milk9111/dosound/sound"
)

// ScriptLoader resolves a script path to its source.
type ScriptLoader func(path string) ([]byte, error)

// SoundScriptSystem runs the tengo scripts attached to entities. A script
// defines setup(engine, state), called on its first update, and
// update(engine, state), called on every later one. The engine map exposes
// the sound commands and script object access; state persists between calls.
type SoundScriptSystem struct {
	dispatcher *sound.Dispatcher
	load       ScriptLoader
	logger     *slog.Logger

	runtimes map[ecs.Entity]*soundScriptRuntime
}

type soundScriptRuntime struct {
	path        string
	compiled    *tengo.Compiled
	state       *tengo.Map
	engine      *tengo.ImmutableMap
	self        sound.ObjectRef
	acc         int64
	initialized bool
}

const soundLifecycleDispatchScript = `
if __phase == "setup" {
	setup(__engine, __state)
} else if __phase == "update" {
	update(__engine, __state)
}
`

func NewSoundScriptSystem(d *sound.Dispatcher, load ScriptLoader, logger *slog.Logger) *SoundScriptSystem {
	if logger == nil {
		logger = slog.Default().With("component", "script")
	}
	return &SoundScriptSystem{
		dispatcher: d,
		load:       load,
		logger:     logger,
		runtimes:   make(map[ecs.Entity]*soundScriptRuntime),
	}
}

func (s *SoundScriptSystem) Update(w *ecs.World) {
	if s == nil || w == nil || s.dispatcher == nil {
		return
	}

	// Scripts may create and destroy entities, so walk a snapshot.
	var ents []ecs.Entity
	ecs.ForEach(w, component.SoundScriptComponent.Kind(), func(e ecs.Entity, _ *component.SoundScript) {
		ents = append(ents, e)
	})

	for _, e := range ents {
		sc, ok := ecs.Get(w, e, component.SoundScriptComponent.Kind())
		if !ok || sc == nil || sc.Done {
			continue
		}
		rt, err := s.runtime(w, e, sc)
		if err != nil {
			s.logger.Error("load sound script failed", "entity", e.String(), "script", sc.Path, "error", err)
			sc.Done = true
			continue
		}

		phase := "update"
		if !rt.initialized {
			phase = "setup"
			rt.initialized = true
		}
		if err := rt.run(phase); err != nil {
			s.logger.Error("sound script failed", "entity", e.String(), "script", rt.path, "phase", phase, "error", err)
			sc.Done = true
		}
	}

	for e := range s.runtimes {
		if !ecs.Has(w, e, component.SoundScriptComponent.Kind()) {
			delete(s.runtimes, e)
		}
	}
}

// Done reports whether every script in w has finished.
func (s *SoundScriptSystem) Done(w *ecs.World) bool {
	done := true
	ecs.ForEach(w, component.SoundScriptComponent.Kind(), func(_ ecs.Entity, sc *component.SoundScript) {
		if sc != nil && !sc.Done {
			done = false
		}
	})
	return done
}

func (s *SoundScriptSystem) runtime(w *ecs.World, e ecs.Entity, sc *component.SoundScript) (*soundScriptRuntime, error) {
	if rt, ok := s.runtimes[e]; ok && rt != nil && rt.path == sc.Path {
		return rt, nil
	}

	src := sc.Source
	if len(src) == 0 {
		if s.load == nil || strings.TrimSpace(sc.Path) == "" {
			return nil, fmt.Errorf("script %q has no source", sc.Path)
		}
		var err error
		if src, err = s.load(sc.Path); err != nil {
			return nil, err
		}
	}

	script := tengo.NewScript([]byte(string(src) + "\n" + soundLifecycleDispatchScript))
	_ = script.Add("__phase", "")
	_ = script.Add("__engine", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, err
	}

	if !ecs.Has(w, e, component.ScriptObjectComponent.Kind()) {
		obj := &component.ScriptObject{Name: sc.Path, Fields: map[string]int64{}}
		if err := ecs.Add(w, e, component.ScriptObjectComponent.Kind(), obj); err != nil {
			return nil, fmt.Errorf("attach %s: %w", component.ScriptObjectComponent.Kind(), err)
		}
	}

	rt := &soundScriptRuntime{
		path:     sc.Path,
		compiled: compiled,
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
		self:     sound.ObjectRef(e),
	}
	rt.engine = s.buildEngine(w, rt, sc)
	s.runtimes[e] = rt
	return rt, nil
}

func (rt *soundScriptRuntime) run(phase string) error {
	if rt == nil || rt.compiled == nil {
		return fmt.Errorf("nil script runtime")
	}
	if err := rt.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := rt.compiled.Set("__engine", rt.engine); err != nil {
		return err
	}
	if err := rt.compiled.Set("__state", rt.state); err != nil {
		return err
	}
	return rt.compiled.Run()
}

func (s *SoundScriptSystem) buildEngine(w *ecs.World, rt *soundScriptRuntime, sc *component.SoundScript) *tengo.ImmutableMap {
	d := s.dispatcher
	fields := ObjectFields{World: w}
	values := map[string]tengo.Object{}

	dispatch := func(index int, args []tengo.Object) tengo.Object {
		operands := make([]int64, 0, len(args))
		for _, a := range args {
			operands = append(operands, objectAsInt(a))
		}
		acc, err := d.Dispatch(rt.acc, index, operands...)
		if err != nil {
			s.logger.Debug("sound command reported", "script", rt.path, "error", err)
		}
		rt.acc = acc
		return &tengo.Int{Value: acc}
	}

	values["self"] = &tengo.Int{Value: int64(rt.self)}
	values["variant"] = &tengo.String{Value: d.Variant().String()}

	values["sound"] = &tengo.UserFunction{Name: "sound", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.UndefinedValue, nil
		}
		name := strings.TrimSpace(objectAsString(args[0]))
		index, ok := d.Opcode(name)
		if !ok {
			s.logger.Warn("unknown sound command", "script", rt.path, "command", name, "variant", d.Variant().String())
			return tengo.UndefinedValue, nil
		}
		return dispatch(index, args[1:]), nil
	}}

	values["do_sound"] = &tengo.UserFunction{Name: "do_sound", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.UndefinedValue, nil
		}
		return dispatch(int(objectAsInt(args[0])), args[1:]), nil
	}}

	values["opcode"] = &tengo.UserFunction{Name: "opcode", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return &tengo.Int{Value: -1}, nil
		}
		index, ok := d.Opcode(strings.TrimSpace(objectAsString(args[0])))
		if !ok {
			return &tengo.Int{Value: -1}, nil
		}
		return &tengo.Int{Value: int64(index)}, nil
	}}

	values["new_object"] = &tengo.UserFunction{Name: "new_object", Value: func(args ...tengo.Object) (tengo.Object, error) {
		name := ""
		if len(args) > 0 {
			name = objectAsString(args[0])
		}
		var init map[string]int64
		if len(args) > 1 {
			init = objectAsFields(args[1])
		}
		ref, err := NewObject(w, name, init)
		if err != nil {
			return tengo.UndefinedValue, nil
		}
		return &tengo.Int{Value: int64(ref)}, nil
	}}

	values["destroy_object"] = &tengo.UserFunction{Name: "destroy_object", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.FalseValue, nil
		}
		ref := sound.ObjectRef(objectAsInt(args[0]))
		if ref == rt.self || !fields.IsObject(ref) {
			return tengo.FalseValue, nil
		}
		// Release the object's song first; nothing can reach its handle
		// once the entity is gone.
		if index, ok := d.Opcode("dispose"); ok {
			if _, err := d.Dispatch(rt.acc, index, int64(ref)); err != nil {
				s.logger.Debug("dispose before destroy reported", "script", rt.path, "error", err)
			}
		}
		if ecs.DestroyEntity(w, ecs.Entity(ref)) {
			return tengo.TrueValue, nil
		}
		return tengo.FalseValue, nil
	}}

	values["is_object"] = &tengo.UserFunction{Name: "is_object", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 || !fields.IsObject(sound.ObjectRef(objectAsInt(args[0]))) {
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["get"] = &tengo.UserFunction{Name: "get", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 2 {
			return tengo.UndefinedValue, nil
		}
		v := fields.Field(sound.ObjectRef(objectAsInt(args[0])), objectAsString(args[1]))
		return &tengo.Int{Value: v}, nil
	}}

	values["set"] = &tengo.UserFunction{Name: "set", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 3 {
			return tengo.FalseValue, nil
		}
		ref := sound.ObjectRef(objectAsInt(args[0]))
		if !fields.IsObject(ref) {
			return tengo.FalseValue, nil
		}
		fields.SetField(ref, objectAsString(args[1]), objectAsInt(args[2]))
		return tengo.TrueValue, nil
	}}

	values["status"] = &tengo.UserFunction{Name: "status", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return tengo.UndefinedValue, nil
		}
		h := sound.HandleOf(sound.ObjectRef(objectAsInt(args[0])))
		return &tengo.String{Value: d.Registry().Status(h).String()}, nil
	}}

	values["tick"] = &tengo.UserFunction{Name: "tick", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Int{Value: int64(w.Tick())}, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, objectAsString(a))
		}
		s.logger.Info(strings.Join(parts, " "), "script", rt.path, "tick", w.Tick())
		return tengo.UndefinedValue, nil
	}}

	values["quit"] = &tengo.UserFunction{Name: "quit", Value: func(args ...tengo.Object) (tengo.Object, error) {
		sc.Done = true
		return tengo.TrueValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectAsInt(obj tengo.Object) int64 {
	switch v := obj.(type) {
	case *tengo.Int:
		return v.Value
	case *tengo.Float:
		return int64(v.Value)
	case *tengo.Char:
		return int64(v.Value)
	case *tengo.Bool:
		if v.IsFalsy() {
			return 0
		}
		return 1
	case *tengo.String:
		n, _ := strconv.ParseInt(strings.TrimSpace(v.Value), 0, 64)
		return n
	default:
		return 0
	}
}

func objectAsFields(obj tengo.Object) map[string]int64 {
	var m map[string]tengo.Object
	switch v := obj.(type) {
	case *tengo.Map:
		m = v.Value
	case *tengo.ImmutableMap:
		m = v.Value
	default:
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, item := range m {
		out[k] = objectAsInt(item)
	}
	return out
}
