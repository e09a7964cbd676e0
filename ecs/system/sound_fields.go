package system

import (
	"github.com/milk9111/dosound/ecs"
	"github.com/milk9111/dosound/ecs/component"
	"github.com/milk9111/dosound/sound"
)

// ObjectFields exposes ScriptObject components to the sound layer. Object
// references are raw entity values.
type ObjectFields struct {
	World *ecs.World
}

func (f ObjectFields) object(obj sound.ObjectRef) (*component.ScriptObject, bool) {
	if f.World == nil || obj == sound.NullObject {
		return nil, false
	}
	return ecs.Get(f.World, ecs.Entity(obj), component.ScriptObjectComponent.Kind())
}

func (f ObjectFields) Field(obj sound.ObjectRef, name string) int64 {
	o, ok := f.object(obj)
	if !ok || o == nil {
		return 0
	}
	return o.Fields[name]
}

// SetField ignores writes to objects that no longer exist.
func (f ObjectFields) SetField(obj sound.ObjectRef, name string, value int64) {
	o, ok := f.object(obj)
	if !ok || o == nil {
		return
	}
	if o.Fields == nil {
		o.Fields = make(map[string]int64)
	}
	o.Fields[name] = value
}

func (f ObjectFields) IsObject(obj sound.ObjectRef) bool {
	_, ok := f.object(obj)
	return ok
}

// NewObject creates an entity carrying a script object with the given
// fields and returns its reference.
func NewObject(w *ecs.World, name string, fields map[string]int64) (sound.ObjectRef, error) {
	e := ecs.CreateEntity(w)
	copied := make(map[string]int64, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	if err := ecs.Add(w, e, component.ScriptObjectComponent.Kind(), &component.ScriptObject{Name: name, Fields: copied}); err != nil {
		ecs.DestroyEntity(w, e)
		return sound.NullObject, err
	}
	return sound.ObjectRef(e), nil
}

var _ sound.Fields = ObjectFields{}
