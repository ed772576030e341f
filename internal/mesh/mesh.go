package mesh

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/wegman-software/osmworld/internal/mapgraph"
)

// DefaultDepth is the extrusion depth in meters used when no height is known
const DefaultDepth = 10.0

// DegenerateFootprintError is returned when a footprint cannot be triangulated
type DegenerateFootprintError struct {
	Points int
	Err    error
}

func (e *DegenerateFootprintError) Error() string {
	return fmt.Sprintf("degenerate footprint with %d points: %v", e.Points, e.Err)
}

func (e *DegenerateFootprintError) Unwrap() error {
	return e.Err
}

// Box is an axis-aligned bounding box
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// Mesh is an indexed triangle mesh. Triangles holds three vertex indices per face.
type Mesh struct {
	Vertices  []r3.Vector
	Triangles []int
	Normals   []r3.Vector
	Bounds    Box

	outline int
}

// TriangleCount returns the number of faces
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles) / 3
}

// BuildSolid extrudes a footprint into a closed solid. X and Y of each point
// span the plane used for triangulation and Z is the base level; the back
// copy of the footprint sits at Z+depth. An n-point footprint yields 2n
// vertices and 2(n-2)+2n triangles.
func BuildSolid(footprint []r3.Vector, depth float64) (*Mesh, error) {
	n := len(footprint)

	flat := make([]r2.Point, n)
	for i, p := range footprint {
		flat[i] = r2.Point{X: p.X, Y: p.Y}
	}
	tris, err := Triangulate(flat)
	if err != nil {
		return nil, &DegenerateFootprintError{Points: n, Err: err}
	}

	m := &Mesh{
		Vertices:  make([]r3.Vector, 2*n),
		Triangles: make([]int, 0, 3*(2*(n-2)+2*n)),
		outline:   n,
	}

	offset := r3.Vector{Z: depth}
	for i, p := range footprint {
		m.Vertices[i] = p
		m.Vertices[i+n] = p.Add(offset)
	}

	// Front face, reversed winding
	for t := 0; t < len(tris); t += 3 {
		m.Triangles = append(m.Triangles, tris[t+2], tris[t+1], tris[t])
	}

	// Back face
	for t := 0; t < len(tris); t += 3 {
		m.Triangles = append(m.Triangles, tris[t]+n, tris[t+1]+n, tris[t+2]+n)
	}

	// Side walls
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		m.Triangles = append(m.Triangles,
			i, i+n, j+n,
			i, j+n, j,
		)
	}

	m.RecalculateNormals()
	m.RecalculateBounds()
	return m, nil
}

// RecalculateNormals sets each vertex normal to the normalized sum of the
// normals of its adjacent faces, weighted by face area. Vertices touching
// only zero-area faces get a zero normal.
func (m *Mesh) RecalculateNormals() {
	m.Normals = make([]r3.Vector, len(m.Vertices))
	for t := 0; t+2 < len(m.Triangles); t += 3 {
		a, b, c := m.Triangles[t], m.Triangles[t+1], m.Triangles[t+2]
		face := m.Vertices[b].Sub(m.Vertices[a]).Cross(m.Vertices[c].Sub(m.Vertices[a]))
		m.Normals[a] = m.Normals[a].Add(face)
		m.Normals[b] = m.Normals[b].Add(face)
		m.Normals[c] = m.Normals[c].Add(face)
	}
	for i, v := range m.Normals {
		m.Normals[i] = v.Normalize()
	}
}

// RecalculateBounds sets Bounds from the vertices
func (m *Mesh) RecalculateBounds() {
	if len(m.Vertices) == 0 {
		m.Bounds = Box{}
		return
	}
	b := Box{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		b.Min = r3.Vector{X: min(b.Min.X, v.X), Y: min(b.Min.Y, v.Y), Z: min(b.Min.Z, v.Z)}
		b.Max = r3.Vector{X: max(b.Max.X, v.X), Y: max(b.Max.Y, v.Y), Z: max(b.Max.Z, v.Z)}
	}
	m.Bounds = b
}

// Validate checks index ranges and, for extruded solids, the vertex and
// triangle counts
func (m *Mesh) Validate() error {
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("triangle index count %d is not a multiple of 3", len(m.Triangles))
	}
	for i, idx := range m.Triangles {
		if idx < 0 || idx >= len(m.Vertices) {
			return fmt.Errorf("triangle index %d at %d out of range [0,%d)", idx, i, len(m.Vertices))
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	if n := m.outline; n > 0 {
		if len(m.Vertices) != 2*n {
			return fmt.Errorf("expected %d vertices, got %d", 2*n, len(m.Vertices))
		}
		if want := 2*(n-2) + 2*n; m.TriangleCount() != want {
			return fmt.Errorf("expected %d triangles, got %d", want, m.TriangleCount())
		}
	}
	return nil
}

// Footprint converts building outline nodes into BuildSolid input. The
// planar X and Z offsets span the footprint plane and the base level is
// the negated node elevation.
func Footprint(nodes []*mapgraph.Node) []r3.Vector {
	out := make([]r3.Vector, len(nodes))
	for i, n := range nodes {
		p := n.Position.Planar
		out[i] = r3.Vector{X: p.X, Y: p.Z, Z: -p.Y}
	}
	return out
}

// ForBuilding builds the extruded mesh of a building
func ForBuilding(b *mapgraph.Building, depth float64) (*Mesh, error) {
	return BuildSolid(Footprint(b.Footprint()), depth)
}
