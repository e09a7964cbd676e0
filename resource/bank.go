package resource

import (
	"sort"
	"sync"
)

// Bank is an in-memory resource set. It is safe for concurrent use.
type Bank struct {
	mu   sync.RWMutex
	data map[ID][]byte
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{data: make(map[ID][]byte)}
}

// Add registers data under the given type and number, replacing any
// previous entry.
func (b *Bank) Add(typ Type, number int, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[ID][]byte)
	}
	b.data[ID{Type: typ, Number: number}] = data
}

// Remove drops an entry.
func (b *Bank) Remove(typ Type, number int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, ID{Type: typ, Number: number})
}

// Find returns the bytes for a resource. A bank never caches, so exact has
// no effect.
func (b *Bank) Find(typ Type, number int, _ bool) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[ID{Type: typ, Number: number}]
	return data, ok
}

func (b *Bank) Exists(typ Type, number int) bool {
	_, ok := b.Find(typ, number, false)
	return ok
}

// IDs lists the stored resources ordered by type, then number.
func (b *Bank) IDs() []ID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ID, 0, len(b.data))
	for id := range b.data {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Type != ids[j].Type {
			return ids[i].Type < ids[j].Type
		}
		return ids[i].Number < ids[j].Number
	})
}
