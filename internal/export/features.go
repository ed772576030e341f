// Package export writes a loaded map to PostGIS, Parquet and Wavefront OBJ.
package export

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/planar"

	"github.com/wegman-software/osmworld/internal/mapgraph"
	"github.com/wegman-software/osmworld/internal/style"
)

// SRID of exported geometries
const SRID = 4326

// Feature is one derived record ready to be written
type Feature struct {
	ID     uint32
	Class  string
	Source string
	Tags   string // JSON object
	Geom   orb.Geometry
	Area   float64 // planar square meters, buildings only
}

// EWKB encodes the geometry as little-endian EWKB with SRID 4326
func (f *Feature) EWKB() ([]byte, error) {
	return ewkb.Marshal(f.Geom, SRID)
}

// Filters selects which derived records are exported. Nil filters keep everything.
type Filters struct {
	Highways  *style.Filter
	Waterways *style.Filter
	Buildings *style.Filter
}

// FiltersFromConfig builds filters from a style configuration
func FiltersFromConfig(cfg *style.Config) Filters {
	if cfg == nil {
		return Filters{}
	}
	return Filters{
		Highways:  style.NewFilter(cfg.Highways),
		Waterways: style.NewFilter(cfg.Waterways),
		Buildings: style.NewFilter(cfg.Buildings),
	}
}

// HighwayFeatures returns one LineString per highway with at least two resolved nodes
func HighwayFeatures(g *mapgraph.Graph, filter *style.Filter) []Feature {
	var out []Feature
	for _, hw := range g.Highways().All() {
		if !filter.Match(hw.Tags) {
			continue
		}
		line := lineString(hw.Way)
		if len(line) < 2 {
			continue
		}
		out = append(out, Feature{
			ID:     hw.ID,
			Class:  hw.Classification.String(),
			Source: mapgraph.SourceWay.String(),
			Tags:   hw.Tags.JSON(),
			Geom:   line,
		})
	}
	return out
}

// WaterwayFeatures returns a LineString for single-way waterways and a
// MultiLineString otherwise
func WaterwayFeatures(g *mapgraph.Graph, filter *style.Filter) []Feature {
	var out []Feature
	for _, ww := range g.Waterways().All() {
		if !filter.Match(ww.Tags) {
			continue
		}
		geom := multiLine(ww.Ways)
		if geom == nil {
			continue
		}
		out = append(out, Feature{
			ID:     ww.ID,
			Class:  ww.Classification.String(),
			Source: ww.Source.String(),
			Tags:   ww.Tags.JSON(),
			Geom:   geom,
		})
	}
	return out
}

// BuildingFeatures returns a Polygon for buildings made of one closed way
// and a MultiLineString otherwise
func BuildingFeatures(g *mapgraph.Graph, filter *style.Filter) []Feature {
	var out []Feature
	for _, b := range g.Buildings().All() {
		if !filter.Match(b.Tags) {
			continue
		}

		f := Feature{
			ID:     b.ID,
			Class:  b.Type.String(),
			Source: b.Source.String(),
			Tags:   b.Tags.JSON(),
			Area:   footprintArea(b),
		}

		if len(b.Ways) == 1 && b.Ways[0] != nil && b.Ways[0].Closed() {
			ring := orb.Ring(lineString(b.Ways[0]))
			if len(ring) >= 4 {
				f.Geom = orb.Polygon{ring}
			}
		}
		if f.Geom == nil {
			geom := multiLine(b.Ways)
			if geom == nil {
				continue
			}
			f.Geom = geom
		}
		out = append(out, f)
	}
	return out
}

// footprintArea returns the area of the building outline in the planar frame
func footprintArea(b *mapgraph.Building) float64 {
	nodes := b.Footprint()
	if len(nodes) < 3 {
		return 0
	}
	ring := make(orb.Ring, 0, len(nodes)+1)
	for _, n := range nodes {
		ring = append(ring, orb.Point{n.Position.Planar.X, n.Position.Planar.Z})
	}
	ring = append(ring, ring[0])
	return math.Abs(planar.Area(ring))
}

// lineString returns the lon/lat path of the resolved nodes of a way
func lineString(w *mapgraph.Way) orb.LineString {
	if w == nil {
		return nil
	}
	nodes := w.Resolved()
	line := make(orb.LineString, 0, len(nodes))
	for _, n := range nodes {
		line = append(line, orb.Point{n.Position.Geographic.Lon, n.Position.Geographic.Lat})
	}
	return line
}

// multiLine collects the usable paths of ways, nil when none is usable
func multiLine(ways []*mapgraph.Way) orb.Geometry {
	var mls orb.MultiLineString
	for _, w := range ways {
		if line := lineString(w); len(line) >= 2 {
			mls = append(mls, line)
		}
	}
	switch len(mls) {
	case 0:
		return nil
	case 1:
		return mls[0]
	default:
		return mls
	}
}
