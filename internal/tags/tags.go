package tags

import (
	"encoding/json"

	"github.com/paulmach/osm"
)

// Tags is the ordered key/value store attached to nodes, ways and relations.
// Keys are unique; insertion order is the order keys were first added.
type Tags struct {
	list osm.Tags
}

// New creates an empty tag store
func New() *Tags {
	return &Tags{}
}

// FromOSM copies an osm.Tags slice, collapsing duplicate keys
func FromOSM(src osm.Tags) *Tags {
	t := &Tags{list: make(osm.Tags, 0, len(src))}
	for _, tag := range src {
		t.Add(tag.Key, tag.Value)
	}
	return t
}

// Add inserts a tag. An existing key keeps its position and takes the new value.
func (t *Tags) Add(k, v string) {
	for i := range t.list {
		if t.list[i].Key == k {
			t.list[i].Value = v
			return
		}
	}
	t.list = append(t.list, osm.Tag{Key: k, Value: v})
}

// Get returns the value for k and whether it was present
func (t *Tags) Get(k string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, tag := range t.list {
		if tag.Key == k {
			return tag.Value, true
		}
	}
	return "", false
}

// Value returns the value for k or the empty string
func (t *Tags) Value(k string) string {
	v, _ := t.Get(k)
	return v
}

// Has reports whether k is present
func (t *Tags) Has(k string) bool {
	_, ok := t.Get(k)
	return ok
}

// Len returns the number of tags
func (t *Tags) Len() int {
	if t == nil {
		return 0
	}
	return len(t.list)
}

// OSM returns the tags in insertion order. The slice must not be modified.
func (t *Tags) OSM() osm.Tags {
	if t == nil {
		return nil
	}
	return t.list
}

// Map returns a copy of the tags as a map
func (t *Tags) Map() map[string]string {
	if t == nil {
		return map[string]string{}
	}
	return t.list.Map()
}

// JSON encodes the tags as a JSON object, "{}" when empty
func (t *Tags) JSON() string {
	if t.Len() == 0 {
		return "{}"
	}
	b, _ := json.Marshal(t.Map())
	return string(b)
}
