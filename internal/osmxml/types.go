package osmxml

import (
	"fmt"

	"github.com/paulmach/osm"
)

// RawNode is a node record as it appears in the document
type RawNode struct {
	ID   uint32
	Lon  float64
	Lat  float64
	Tags osm.Tags
}

// RawWay is a way record with unresolved node references
type RawWay struct {
	ID   uint32
	Refs []uint32
	Tags osm.Tags
}

// Member is one relation member reference
type Member struct {
	Type osm.Type // node, way or relation
	Ref  uint32
	Role string
}

// RawRelation is a relation record with unresolved member references
type RawRelation struct {
	ID      uint32
	Members []Member
	Tags    osm.Tags
}

// Document holds every visible record of an OSM XML document in document order
type Document struct {
	Bounds    *osm.Bounds
	Nodes     []RawNode
	Ways      []RawWay
	Relations []RawRelation
	Stats     Stats
}

// Stats tracks decoding statistics
type Stats struct {
	Nodes     int64
	Ways      int64
	Relations int64
	Tags      int64
	Hidden    int64 // elements skipped because visible="false"
}

// Total returns the number of visible elements decoded
func (s *Stats) Total() int64 {
	return s.Nodes + s.Ways + s.Relations
}

// MalformedInputError is returned when the document is not well-formed XML
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed map XML: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// MissingAttributeError is returned when a required attribute is absent.
// Parent and ID identify the enclosing node/way/relation for child elements.
type MissingAttributeError struct {
	Element   string
	Attribute string
	Parent    string
	ID        string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing attribute %q on %s", e.Attribute, describe(e.Element, e.Parent, e.ID))
}

// InvalidAttributeError is returned when a required attribute cannot be parsed
type InvalidAttributeError struct {
	Element   string
	Attribute string
	Value     string
	Parent    string
	ID        string
	Err       error
}

func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("invalid attribute %s=%q on %s: %v", e.Attribute, e.Value, describe(e.Element, e.Parent, e.ID), e.Err)
}

func (e *InvalidAttributeError) Unwrap() error {
	return e.Err
}

func describe(element, parent, id string) string {
	switch {
	case parent != "" && id != "":
		return fmt.Sprintf("%s of %s %s", element, parent, id)
	case parent != "":
		return fmt.Sprintf("%s of %s", element, parent)
	case id != "":
		return fmt.Sprintf("%s %s", element, id)
	default:
		return element
	}
}
