package proj

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/paulmach/osm"
)

const (
	// MetersPerDegree is the equirectangular length of one degree at the equator.
	// No latitude correction is applied anywhere.
	MetersPerDegree = 111319.9

	// BaseZoom is the half-extent in degrees of the smallest zoom level
	BaseZoom = 0.0009765625
)

// Geographic is a longitude/latitude pair in degrees plus an elevation in meters
type Geographic struct {
	Lon       float64
	Lat       float64
	Elevation float64
}

// Location is a point on the map used as the center of a derived bounds
type Location struct {
	Lon float64
	Lat float64
}

// Position carries the same point in the geographic and planar frames.
// Planar X is the east offset and Z the north offset from the bounds center,
// both in meters; Planar Y is the elevation.
type Position struct {
	Geographic Geographic
	Planar     r3.Vector
}

// SetElevation updates the elevation in both frames
func (p *Position) SetElevation(meters float64) {
	p.Geographic.Elevation = meters
	p.Planar.Y = meters
}

// Bounds is the geographic extent of a load plus its center.
// Center is the only reference point used by Project.
type Bounds struct {
	Min    Position
	Max    Position
	Center Position
}

// ComputeBounds returns the bounds of a map load. Explicit bounds from the
// source document win; otherwise the bounds are center ± zoomRadius degrees.
func ComputeBounds(explicit *osm.Bounds, center Location, zoomRadius float64) Bounds {
	var b Bounds
	if explicit != nil {
		b.Min.Geographic = Geographic{Lon: explicit.MinLon, Lat: explicit.MinLat}
		b.Max.Geographic = Geographic{Lon: explicit.MaxLon, Lat: explicit.MaxLat}
	} else {
		b.Min.Geographic = Geographic{Lon: center.Lon - zoomRadius, Lat: center.Lat - zoomRadius}
		b.Max.Geographic = Geographic{Lon: center.Lon + zoomRadius, Lat: center.Lat + zoomRadius}
	}

	b.Center.Geographic = Geographic{
		Lon: b.Min.Geographic.Lon + (b.Max.Geographic.Lon-b.Min.Geographic.Lon)/2,
		Lat: b.Min.Geographic.Lat + (b.Max.Geographic.Lat-b.Min.Geographic.Lat)/2,
	}

	b.Min.Planar = Project(b.Min.Geographic, b)
	b.Max.Planar = Project(b.Max.Geographic, b)
	b.Center.Planar = Project(b.Center.Geographic, b)
	return b
}

// Project converts a geographic coordinate to the planar frame of b
func Project(g Geographic, b Bounds) r3.Vector {
	return r3.Vector{
		X: (g.Lon - b.Center.Geographic.Lon) * MetersPerDegree,
		Y: g.Elevation,
		Z: (g.Lat - b.Center.Geographic.Lat) * MetersPerDegree,
	}
}

// Position builds a Position for lon/lat at zero elevation
func (b Bounds) Position(lon, lat float64) Position {
	g := Geographic{Lon: lon, Lat: lat}
	return Position{Geographic: g, Planar: Project(g, b)}
}

// BBox returns minlon, minlat, maxlon, maxlat
func (b Bounds) BBox() [4]float64 {
	return [4]float64{
		b.Min.Geographic.Lon, b.Min.Geographic.Lat,
		b.Max.Geographic.Lon, b.Max.Geographic.Lat,
	}
}

// String returns both frames of the bounds
func (b Bounds) String() string {
	return fmt.Sprintf("world: %.2f,%.2f,%.2f,%.2f geographic: %.7f,%.7f,%.7f,%.7f",
		b.Min.Planar.X, b.Min.Planar.Z, b.Max.Planar.X, b.Max.Planar.Z,
		b.Min.Geographic.Lon, b.Min.Geographic.Lat, b.Max.Geographic.Lon, b.Max.Geographic.Lat)
}

// Zoom selects the size of a derived bounds. Level 0 spans roughly 217m x 217m.
type Zoom int

const (
	MinZoom Zoom = 0
	MaxZoom Zoom = 10
)

// Radius returns the half-extent in degrees for the zoom level
func (z Zoom) Radius() float64 {
	return BaseZoom * float64(z+1)
}

// ParseZoom validates a zoom level
func ParseZoom(level int) (Zoom, error) {
	z := Zoom(level)
	if z < MinZoom || z > MaxZoom {
		return 0, fmt.Errorf("unsupported zoom level: %d (supported: %d-%d)", level, MinZoom, MaxZoom)
	}
	return z, nil
}
