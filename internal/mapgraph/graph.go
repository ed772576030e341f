// Package mapgraph resolves decoded OSM records into a linked graph of
// nodes, ways and relations plus the highway, waterway and building
// records derived from their tags.
package mapgraph

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/classify"
	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/osmxml"
	"github.com/wegman-software/osmworld/internal/proj"
	"github.com/wegman-software/osmworld/internal/tags"
)

// NodeEnricher is invoked on the node table, in insertion order, once all
// nodes are parsed and before any way is resolved.
type NodeEnricher interface {
	EnrichNodes(ctx context.Context, nodes []*Node) error
}

// Options controls graph construction
type Options struct {
	// Center and ZoomRadius define the bounds when the document has none
	Center     proj.Location
	ZoomRadius float64

	// Enricher is optional
	Enricher NodeEnricher

	// Trace logs every element at debug level
	Trace bool
}

// Graph is the resolved map of one load. It is not modified after Build returns.
type Graph struct {
	bounds proj.Bounds

	nodes     *Table[*Node]
	ways      *Table[*Way]
	relations *Table[*Relation]
	highways  *Table[*Highway]
	waterways *Table[*Waterway]
	buildings *Table[*Building]

	unresolved int
	duplicates int
}

func newGraph(bounds proj.Bounds) *Graph {
	return &Graph{
		bounds:    bounds,
		nodes:     NewTable[*Node](),
		ways:      NewTable[*Way](),
		relations: NewTable[*Relation](),
		highways:  NewTable[*Highway](),
		waterways: NewTable[*Waterway](),
		buildings: NewTable[*Building](),
	}
}

// Bounds returns the bounds every node was projected against
func (g *Graph) Bounds() proj.Bounds { return g.bounds }
func (g *Graph) Nodes() *Table[*Node] { return g.nodes }
func (g *Graph) Ways() *Table[*Way] { return g.ways }
func (g *Graph) Relations() *Table[*Relation] { return g.relations }
func (g *Graph) Highways() *Table[*Highway] { return g.highways }
func (g *Graph) Waterways() *Table[*Waterway] { return g.waterways }
func (g *Graph) Buildings() *Table[*Building] { return g.buildings }

// Unresolved returns the number of references that pointed at missing entities
func (g *Graph) Unresolved() int { return g.unresolved }

// Duplicates returns the number of records that replaced an earlier one with the same id
func (g *Graph) Duplicates() int { return g.duplicates }

// Parse decodes an OSM XML document from r and builds its graph
func Parse(ctx context.Context, r io.Reader, opts Options) (*Graph, error) {
	doc, err := osmxml.Decode(ctx, r)
	if err != nil {
		return nil, err
	}
	return Build(ctx, doc, opts)
}

// Build resolves a decoded document. Nodes are processed first, then ways,
// then relations, each in document order.
func Build(ctx context.Context, doc *osmxml.Document, opts Options) (*Graph, error) {
	log := logger.Get()

	bounds := proj.ComputeBounds(doc.Bounds, opts.Center, opts.ZoomRadius)
	g := newGraph(bounds)
	log.Debug("Computed map bounds", zap.Stringer("bounds", bounds))

	for i := range doc.Nodes {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		g.addNode(&doc.Nodes[i], opts.Trace)
	}

	if opts.Enricher != nil {
		if err := opts.Enricher.EnrichNodes(ctx, g.nodes.All()); err != nil {
			return nil, fmt.Errorf("failed to enrich nodes: %w", err)
		}
	}

	for i := range doc.Ways {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		g.addWay(&doc.Ways[i], opts.Trace)
	}

	for i := range doc.Relations {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		g.addRelation(&doc.Relations[i], opts.Trace)
	}

	log.Info("Map graph built",
		zap.Int("nodes", g.nodes.Len()),
		zap.Int("ways", g.ways.Len()),
		zap.Int("relations", g.relations.Len()),
		zap.Int("highways", g.highways.Len()),
		zap.Int("waterways", g.waterways.Len()),
		zap.Int("buildings", g.buildings.Len()),
		zap.Int("unresolved", g.unresolved))

	return g, nil
}

func checkContext(ctx context.Context, i int) error {
	if i%10000 != 0 {
		return nil
	}
	return ctx.Err()
}

func (g *Graph) addNode(raw *osmxml.RawNode, trace bool) {
	node := &Node{
		ID:       raw.ID,
		Position: g.bounds.Position(raw.Lon, raw.Lat),
		Tags:     tags.FromOSM(raw.Tags),
	}
	if g.nodes.Put(node.ID, node) {
		g.duplicates++
	}
	if trace {
		logger.Get().Debug("Node", zap.Uint32("id", node.ID),
			zap.Float64("x", node.Position.Planar.X), zap.Float64("z", node.Position.Planar.Z))
	}
}

func (g *Graph) addWay(raw *osmxml.RawWay, trace bool) {
	way := &Way{
		ID:    raw.ID,
		Nodes: make([]*Node, len(raw.Refs)),
		Tags:  tags.New(),
	}
	for i, ref := range raw.Refs {
		way.Nodes[i] = g.resolveNode(ref)
	}
	if g.ways.Put(way.ID, way) {
		g.duplicates++
		g.dropDerived(way.ID, SourceWay)
	}

	for _, tag := range raw.Tags {
		way.Tags.Add(tag.Key, tag.Value)

		switch classify.ForWay(tag.Key, tag.Value) {
		case classify.KindHighway:
			g.highways.Put(way.ID, &Highway{
				Way:            way,
				Classification: classify.Highway(tag.Value),
			})
		case classify.KindWaterway:
			g.waterways.Put(way.ID, &Waterway{
				ID:             way.ID,
				Classification: classify.Waterway(tag.Value),
				Ways:           []*Way{way},
				Source:         SourceWay,
				Tags:           way.Tags,
			})
		case classify.KindBuilding:
			g.buildings.Put(way.ID, &Building{
				ID:     way.ID,
				Type:   classify.BuildingOf(tag.Value),
				Ways:   []*Way{way},
				Source: SourceWay,
				Tags:   way.Tags,
			})
		}
	}

	if trace {
		logger.Get().Debug("Way", zap.Uint32("id", way.ID),
			zap.Int("nodes", len(way.Nodes)), zap.Int("tags", way.Tags.Len()))
	}
}

// dropDerived removes the features classified from a replaced way or
// relation so they can be rebuilt from the record that replaced it
func (g *Graph) dropDerived(id uint32, source Source) {
	if source == SourceWay {
		g.highways.Delete(id)
	}
	if w, ok := g.waterways.Get(id); ok && w.Source == source {
		g.waterways.Delete(id)
	}
	if b, ok := g.buildings.Get(id); ok && b.Source == source {
		g.buildings.Delete(id)
	}
}

func (g *Graph) addRelation(raw *osmxml.RawRelation, trace bool) {
	rel := &Relation{
		ID:      raw.ID,
		Members: raw.Members,
		Tags:    tags.New(),
		Type:    classify.Multipolygon,
	}

	for _, m := range raw.Members {
		switch m.Type {
		case osm.TypeNode:
			rel.Nodes = append(rel.Nodes, g.resolveNode(m.Ref))
		case osm.TypeWay:
			rel.Ways = append(rel.Ways, g.resolveWay(m.Ref))
		case osm.TypeRelation:
			// Only relations earlier in the document can be resolved
			rel.Relations = append(rel.Relations, g.resolveRelation(m.Ref))
		default:
			logger.Get().Debug("Unknown member type",
				zap.Uint32("relation", rel.ID), zap.String("type", string(m.Type)))
		}
	}
	if g.relations.Put(rel.ID, rel) {
		g.duplicates++
		g.dropDerived(rel.ID, SourceRelation)
	}

	for _, tag := range raw.Tags {
		rel.Tags.Add(tag.Key, tag.Value)

		switch classify.ForRelation(tag.Key, tag.Value) {
		case classify.KindRelationType:
			if t, ok := classify.Relation(tag.Value); ok {
				rel.Type = t
			}
		case classify.KindBuilding:
			g.buildings.Put(rel.ID, &Building{
				ID:     rel.ID,
				Type:   classify.BuildingOf(tag.Value),
				Ways:   rel.Ways,
				Source: SourceRelation,
				Tags:   rel.Tags,
			})
		case classify.KindWaterway:
			g.waterways.Put(rel.ID, &Waterway{
				ID:             rel.ID,
				Classification: classify.Waterway(tag.Value),
				Ways:           rel.Ways,
				Source:         SourceRelation,
				Tags:           rel.Tags,
			})
		}
	}

	if trace {
		logger.Get().Debug("Relation", zap.Uint32("id", rel.ID),
			zap.Stringer("type", rel.Type), zap.Int("members", len(rel.Members)))
	}
}

func (g *Graph) resolveNode(id uint32) *Node {
	n, ok := g.nodes.Get(id)
	if !ok {
		g.unresolved++
	}
	return n
}

func (g *Graph) resolveWay(id uint32) *Way {
	w, ok := g.ways.Get(id)
	if !ok {
		g.unresolved++
	}
	return w
}

func (g *Graph) resolveRelation(id uint32) *Relation {
	r, ok := g.relations.Get(id)
	if !ok {
		g.unresolved++
	}
	return r
}
