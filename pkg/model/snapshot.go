package model

import (
	"maps"
	"slices"
)

// Snapshot maps component ids to components. The zero value is the empty
// snapshot. Snapshots are never mutated after construction.
type Snapshot struct {
	components map[int64]Component
}

// NewSnapshot returns a snapshot holding components.
func NewSnapshot(components ...Component) Snapshot {
	b := Snapshot{}.Builder()
	for _, c := range components {
		b.Set(c)
	}
	return b.Freeze()
}

// Len returns the number of components.
func (s Snapshot) Len() int { return len(s.components) }

// Get returns the component with id.
func (s Snapshot) Get(id int64) (Component, bool) {
	c, ok := s.components[id]
	return c, ok
}

// IDs returns the component ids in ascending order.
func (s Snapshot) IDs() []int64 {
	return slices.Sorted(maps.Keys(s.components))
}

// Components returns every component ordered by id.
func (s Snapshot) Components() []Component {
	out := make([]Component, 0, len(s.components))
	for _, id := range s.IDs() {
		out = append(out, s.components[id])
	}
	return out
}

// Map returns a copy of the snapshot as a plain map.
func (s Snapshot) Map() map[int64]Component {
	return maps.Clone(s.components)
}

// Builder returns a builder seeded with the snapshot's components.
func (s Snapshot) Builder() *Builder {
	return &Builder{base: s.components}
}

// Builder accumulates edits on top of a base snapshot. The base map is
// copied on the first write only.
type Builder struct {
	base    map[int64]Component
	edits   map[int64]Component
	touched bool
}

// Get returns the component with id as seen through pending edits.
func (b *Builder) Get(id int64) (Component, bool) {
	if b.touched {
		c, ok := b.edits[id]
		return c, ok
	}
	c, ok := b.base[id]
	return c, ok
}

// Set inserts or replaces a component.
func (b *Builder) Set(c Component) {
	if !b.touched {
		b.edits = maps.Clone(b.base)
		if b.edits == nil {
			b.edits = make(map[int64]Component)
		}
		b.touched = true
	}
	b.edits[c.ID] = c
}

// Freeze returns the resulting snapshot. Edits made after Freeze start from
// the frozen snapshot and never alter it.
func (b *Builder) Freeze() Snapshot {
	if !b.touched {
		return Snapshot{components: b.base}
	}
	s := Snapshot{components: b.edits}
	b.edits = nil
	b.touched = false
	b.base = s.components
	return s
}
