// Package classify maps OSM tag values onto the record kinds and
// classifications held by the map graph.
package classify

// HighwayClassification is the road class of a highway
type HighwayClassification int

const (
	Road HighwayClassification = iota
	Motorway
	MotorwayLink
	Trunk
	TrunkLink
	Primary
	PrimaryLink
	Secondary
	SecondaryLink
	Tertiary
	TertiaryLink
	Pedestrian
	Residential
)

var highwayNames = [...]string{
	Road:          "road",
	Motorway:      "motorway",
	MotorwayLink:  "motorway_link",
	Trunk:         "trunk",
	TrunkLink:     "trunk_link",
	Primary:       "primary",
	PrimaryLink:   "primary_link",
	Secondary:     "secondary",
	SecondaryLink: "secondary_link",
	Tertiary:      "tertiary",
	TertiaryLink:  "tertiary_link",
	Pedestrian:    "pedestrian",
	Residential:   "residential",
}

func (c HighwayClassification) String() string {
	if c < 0 || int(c) >= len(highwayNames) {
		return "unknown"
	}
	return highwayNames[c]
}

var highwayValues = map[string]HighwayClassification{
	"motorway":       Motorway,
	"motorway_link":  MotorwayLink,
	"trunk":          Trunk,
	"trunk_link":     TrunkLink,
	"primary":        Primary,
	"primary_link":   PrimaryLink,
	"secondary":      Secondary,
	"secondary_link": SecondaryLink,
	"tertiary":       Tertiary,
	"tertiary_link":  TertiaryLink,
	"living_street":  Pedestrian,
	"pedestrian":     Pedestrian,
	"residential":    Residential,
}

// Highway classifies the value of a highway tag. Unknown values are Road.
func Highway(value string) HighwayClassification {
	if c, ok := highwayValues[value]; ok {
		return c
	}
	return Road
}

// WaterwayClassification is the kind of a water feature
type WaterwayClassification int

const (
	River WaterwayClassification = iota
	Stream
	Canal
	Lake
)

func (c WaterwayClassification) String() string {
	switch c {
	case River:
		return "river"
	case Stream:
		return "stream"
	case Canal:
		return "canal"
	case Lake:
		return "lake"
	default:
		return "unknown"
	}
}

// Waterway classifies the value of a waterway tag (or natural=water).
// Unknown values are River.
func Waterway(value string) WaterwayClassification {
	switch value {
	case "stream":
		return Stream
	case "canal":
		return Canal
	case "water":
		return Lake
	default:
		return River
	}
}

// RelationType is the value of a relation's type tag
type RelationType int

const (
	Multipolygon RelationType = iota
	Route
	RouteMaster
	Restriction
	Boundary
	Street
	AssociatedStreet
	PublicTransport
	DestinationSign
	WaterwayRelation
	Enforcement
)

var relationNames = [...]string{
	Multipolygon:     "multipolygon",
	Route:            "route",
	RouteMaster:      "route_master",
	Restriction:      "restriction",
	Boundary:         "boundary",
	Street:           "street",
	AssociatedStreet: "associatedStreet",
	PublicTransport:  "public_transport",
	DestinationSign:  "destination_sign",
	WaterwayRelation: "waterway",
	Enforcement:      "enforcement",
}

var relationValues = func() map[string]RelationType {
	m := make(map[string]RelationType, len(relationNames))
	for i, name := range relationNames {
		m[name] = RelationType(i)
	}
	return m
}()

func (t RelationType) String() string {
	if t < 0 || int(t) >= len(relationNames) {
		return "unknown"
	}
	return relationNames[t]
}

// Relation classifies the value of a relation's type tag. ok is false for
// unrecognised values, in which case the caller keeps its current type.
func Relation(value string) (RelationType, bool) {
	t, ok := relationValues[value]
	return t, ok
}

// BuildingType is the kind of a building
type BuildingType int

const (
	Building BuildingType = iota
)

func (t BuildingType) String() string {
	if t == Building {
		return "building"
	}
	return "unknown"
}

// BuildingOf classifies the value of a building tag. Every value maps to Building.
func BuildingOf(value string) BuildingType {
	return Building
}

// Kind is the derived record produced by a single tag
type Kind int

const (
	KindNone Kind = iota
	KindHighway
	KindWaterway
	KindBuilding
	KindRelationType
)

func (k Kind) String() string {
	switch k {
	case KindHighway:
		return "highway"
	case KindWaterway:
		return "waterway"
	case KindBuilding:
		return "building"
	case KindRelationType:
		return "relation_type"
	default:
		return "none"
	}
}

// ForWay returns the record kind a way tag derives
func ForWay(key, value string) Kind {
	switch {
	case key == "highway":
		return KindHighway
	case key == "waterway":
		return KindWaterway
	case key == "natural" && value == "water":
		return KindWaterway
	case key == "building":
		return KindBuilding
	default:
		return KindNone
	}
}

// ForRelation returns the record kind a relation tag derives
func ForRelation(key, value string) Kind {
	switch {
	case key == "type":
		return KindRelationType
	case key == "building":
		return KindBuilding
	case key == "natural" && value == "water":
		return KindWaterway
	default:
		return KindNone
	}
}
