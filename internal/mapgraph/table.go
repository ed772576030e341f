package mapgraph

// Table is an id-keyed store that remembers insertion order.
// Putting an existing id replaces the value at its original position.
type Table[T any] struct {
	index map[uint32]int
	ids   []uint32
	items []T
}

// NewTable creates an empty table
func NewTable[T any]() *Table[T] {
	return &Table[T]{index: make(map[uint32]int)}
}

// Put inserts or replaces the value for id. It reports whether a value was replaced.
func (t *Table[T]) Put(id uint32, v T) bool {
	if i, ok := t.index[id]; ok {
		t.items[i] = v
		return true
	}
	t.index[id] = len(t.items)
	t.ids = append(t.ids, id)
	t.items = append(t.items, v)
	return false
}

// Delete removes id, keeping the order of the remaining entries.
// It reports whether id was present.
func (t *Table[T]) Delete(id uint32) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	delete(t.index, id)
	t.ids = append(t.ids[:i], t.ids[i+1:]...)
	t.items = append(t.items[:i], t.items[i+1:]...)
	for j := i; j < len(t.ids); j++ {
		t.index[t.ids[j]] = j
	}
	return true
}

// Get returns the value stored for id
func (t *Table[T]) Get(id uint32) (T, bool) {
	if t == nil {
		var zero T
		return zero, false
	}
	i, ok := t.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.items[i], true
}

// Has reports whether id is present
func (t *Table[T]) Has(id uint32) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[id]
	return ok
}

// Len returns the number of entries
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.items)
}

// All returns the values in insertion order
func (t *Table[T]) All() []T {
	if t == nil {
		return nil
	}
	out := make([]T, len(t.items))
	copy(out, t.items)
	return out
}

// IDs returns the keys in insertion order
func (t *Table[T]) IDs() []uint32 {
	if t == nil {
		return nil
	}
	out := make([]uint32, len(t.ids))
	copy(out, t.ids)
	return out
}
