package mapgraph

import (
	"github.com/wegman-software/osmworld/internal/classify"
	"github.com/wegman-software/osmworld/internal/osmxml"
	"github.com/wegman-software/osmworld/internal/proj"
	"github.com/wegman-software/osmworld/internal/tags"
)

// Node is a point of the map with its position in both frames
type Node struct {
	ID       uint32
	Position proj.Position
	Tags     *tags.Tags
}

// Way is an ordered list of nodes. A nil slot is a reference to a node
// missing from the document.
type Way struct {
	ID    uint32
	Nodes []*Node
	Tags  *tags.Tags
}

// Closed reports whether the way starts and ends on the same node
func (w *Way) Closed() bool {
	if len(w.Nodes) < 2 {
		return false
	}
	first, last := w.Nodes[0], w.Nodes[len(w.Nodes)-1]
	return first != nil && first == last
}

// Resolved returns the non-nil nodes of the way in order
func (w *Way) Resolved() []*Node {
	out := make([]*Node, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Relation groups members of any type. Typed slots are nil for members
// that could not be resolved.
type Relation struct {
	ID        uint32
	Nodes     []*Node
	Ways      []*Way
	Relations []*Relation
	Members   []osmxml.Member
	Tags      *tags.Tags
	Type      classify.RelationType
}

// Source tells which kind of entity a derived record came from
type Source int

const (
	SourceWay Source = iota
	SourceRelation
)

func (s Source) String() string {
	if s == SourceRelation {
		return "relation"
	}
	return "way"
}

// Highway is a way tagged as a road
type Highway struct {
	*Way
	Classification classify.HighwayClassification
}

// Waterway is a water feature built from a way or a relation
type Waterway struct {
	ID             uint32
	Classification classify.WaterwayClassification
	Ways           []*Way
	Source         Source
	Tags           *tags.Tags
}

// Building is a structure built from a way or a relation
type Building struct {
	ID     uint32
	Type   classify.BuildingType
	Ways   []*Way
	Source Source
	Tags   *tags.Tags
}

// Footprint returns the outline nodes of the building: the nodes of all
// its ways concatenated, with unresolved slots, repeated neighbours and
// the closing node dropped.
func (b *Building) Footprint() []*Node {
	var out []*Node
	for _, w := range b.Ways {
		if w == nil {
			continue
		}
		for _, n := range w.Resolved() {
			if len(out) > 0 && out[len(out)-1] == n {
				continue
			}
			out = append(out, n)
		}
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
