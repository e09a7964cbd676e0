package ecs

import "github.com/milk9111/dosound/ecs/component"

type componentStore interface {
	removeEntity(e Entity)
}

// World owns entities and their components. A Scheduler runs systems over
// it and advances its tick.
type World struct {
	entities entityStore
	stores   map[component.ComponentID]componentStore
	tick     uint64
}

// NewWorld creates an empty ECS world.
func NewWorld() *World {
	return &World{stores: make(map[component.ComponentID]componentStore)}
}

// CreateEntity allocates a new entity.
func (w *World) CreateEntity() Entity {
	return w.entities.create()
}

// DestroyEntity marks an entity as dead and drops all of its components.
func (w *World) DestroyEntity(e Entity) bool {
	if w == nil || !w.entities.isAlive(e) {
		return false
	}
	for _, s := range w.stores {
		s.removeEntity(e)
	}
	return w.entities.destroy(e)
}

// IsAlive reports whether an entity handle is valid.
func (w *World) IsAlive(e Entity) bool {
	if w == nil {
		return false
	}
	return w.entities.isAlive(e)
}

// Entities returns every live entity in slot order.
func (w *World) Entities() []Entity {
	if w == nil {
		return nil
	}
	out := make([]Entity, 0, w.entities.count)
	w.entities.each(func(e Entity) {
		out = append(out, e)
	})
	return out
}

// Tick returns the number of completed Scheduler updates.
func (w *World) Tick() uint64 {
	if w == nil {
		return 0
	}
	return w.tick
}
