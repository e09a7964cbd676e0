package ecs

import "github.com/milk9111/dosound/ecs/component"

func storeFor[T any](w *World, kind component.ComponentKind[T], create bool) *SparseSet[*T] {
	if w == nil || !kind.Valid() {
		return nil
	}
	if w.stores == nil {
		w.stores = make(map[component.ComponentID]componentStore)
	}
	if s, ok := w.stores[kind.ID()]; ok {
		set, _ := s.(*SparseSet[*T])
		return set
	}
	if !create {
		return nil
	}
	set := &SparseSet[*T]{}
	w.stores[kind.ID()] = set
	return set
}

func CreateEntity(w *World) Entity {
	return w.CreateEntity()
}

func DestroyEntity(w *World, e Entity) bool {
	return w.DestroyEntity(e)
}

func IsAlive(w *World, e Entity) bool {
	return w.IsAlive(e)
}

func Entities(w *World) []Entity {
	return w.Entities()
}

func Add[T any](w *World, e Entity, kind component.ComponentKind[T], value *T) error {
	if !kind.Valid() {
		return component.ErrInvalidComponentKind
	}
	if value == nil {
		return component.ErrNilComponent
	}
	if !w.IsAlive(e) {
		return component.ErrEntityNotAlive
	}
	storeFor(w, kind, true).Set(e, value)
	return nil
}

func Has[T any](w *World, e Entity, kind component.ComponentKind[T]) bool {
	return w.IsAlive(e) && storeFor(w, kind, false).Has(e)
}

func Get[T any](w *World, e Entity, kind component.ComponentKind[T]) (*T, bool) {
	if !w.IsAlive(e) {
		return nil, false
	}
	return storeFor(w, kind, false).Get(e)
}

// ForEach visits every entity holding the component. The callback must not
// add or remove components of the same kind.
func ForEach[T any](w *World, kind component.ComponentKind[T], fn func(Entity, *T)) {
	set := storeFor(w, kind, false)
	if set == nil || fn == nil {
		return
	}
	ents := set.Entities()
	vals := set.Values()
	for i := range ents {
		fn(ents[i], vals[i])
	}
}

func First[T any](w *World, kind component.ComponentKind[T]) (Entity, bool) {
	set := storeFor(w, kind, false)
	if set.Len() == 0 {
		return 0, false
	}
	return set.Entities()[0], true
}
