package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osmworld/internal/mapgraph"
	"github.com/wegman-software/osmworld/internal/proj"
)

func pts(coords ...float64) []r2.Point {
	out := make([]r2.Point, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, r2.Point{X: coords[i], Y: coords[i+1]})
	}
	return out
}

func triangleArea(p []r2.Point, a, b, c int) float64 {
	return p[b].Sub(p[a]).Cross(p[c].Sub(p[a])) / 2
}

func polygonArea(p []r2.Point) float64 {
	return math.Abs(signedArea(p))
}

func TestTriangulate(t *testing.T) {
	tests := []struct {
		name   string
		points []r2.Point
	}{
		{"triangle", pts(0, 0, 1, 0, 0, 1)},
		{"square ccw", pts(0, 0, 1, 0, 1, 1, 0, 1)},
		{"square cw", pts(0, 0, 0, 1, 1, 1, 1, 0)},
		{"concave L", pts(0, 0, 2, 0, 2, 1, 1, 1, 1, 2, 0, 2)},
		{"concave U", pts(0, 0, 3, 0, 3, 3, 2, 3, 2, 1, 1, 1, 1, 3, 0, 3)},
		{"collinear edge", pts(0, 0, 1, 0, 2, 0, 2, 2, 0, 2)},
		{"arrow", pts(0, 0, 4, 2, 0, 4, 1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tris, err := Triangulate(tt.points)
			require.NoError(t, err)

			n := len(tt.points)
			require.Len(t, tris, 3*(n-2))

			var total float64
			for i := 0; i < len(tris); i += 3 {
				area := triangleArea(tt.points, tris[i], tris[i+1], tris[i+2])
				assert.GreaterOrEqual(t, area, -1e-12, "triangle %d is clockwise", i/3)
				total += area
			}
			assert.InDelta(t, polygonArea(tt.points), total, 1e-9)
		})
	}
}

func TestTriangulateErrors(t *testing.T) {
	tests := []struct {
		name   string
		points []r2.Point
		want   error
	}{
		{"empty", nil, ErrTooFewPoints},
		{"two points", pts(0, 0, 1, 1), ErrTooFewPoints},
		{"duplicate", pts(0, 0, 1, 0, 1, 0, 0, 1), ErrDuplicatePoint},
		{"closing duplicate", pts(0, 0, 1, 0, 1, 1, 0, 0), ErrDuplicatePoint},
		{"collinear", pts(0, 0, 1, 0, 2, 0), ErrZeroArea},
		{"bowtie", pts(0, 0, 1, 1, 1, 0, 0, 1), ErrZeroArea},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Triangulate(tt.points)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTriangulateSelfIntersecting(t *testing.T) {
	// Uneven bowtie: non-zero area but no valid triangulation covering it
	_, err := Triangulate(pts(0, 0, 4, 4, 4, 0, 0, 1))
	if err != nil {
		assert.True(t, errors.Is(err, ErrNoEar) || errors.Is(err, ErrZeroArea))
	}
}

func square(z float64) []r3.Vector {
	return []r3.Vector{
		{X: 0, Y: 0, Z: z},
		{X: 1, Y: 0, Z: z},
		{X: 1, Y: 1, Z: z},
		{X: 0, Y: 1, Z: z},
	}
}

func TestBuildSolidUnitSquare(t *testing.T) {
	m, err := BuildSolid(square(0), 10)
	require.NoError(t, err)

	assert.Len(t, m.Vertices, 8)
	assert.Equal(t, 12, m.TriangleCount())
	assert.Len(t, m.Normals, 8)
	require.NoError(t, m.Validate())

	for i := 0; i < 4; i++ {
		assert.Equal(t, 0.0, m.Vertices[i].Z)
		assert.Equal(t, 10.0, m.Vertices[i+4].Z)
		assert.Equal(t, m.Vertices[i].X, m.Vertices[i+4].X)
	}

	assert.Equal(t, r3.Vector{X: 0, Y: 0, Z: 0}, m.Bounds.Min)
	assert.Equal(t, r3.Vector{X: 1, Y: 1, Z: 10}, m.Bounds.Max)
}

func TestBuildSolidWinding(t *testing.T) {
	m, err := BuildSolid(square(0), 10)
	require.NoError(t, err)

	faceNormal := func(t int) r3.Vector {
		a, b, c := m.Triangles[3*t], m.Triangles[3*t+1], m.Triangles[3*t+2]
		return m.Vertices[b].Sub(m.Vertices[a]).Cross(m.Vertices[c].Sub(m.Vertices[a]))
	}

	// front face triangles come first and face away from the back copy
	for i := 0; i < 2; i++ {
		assert.Less(t, faceNormal(i).Z, 0.0)
	}
	for i := 2; i < 4; i++ {
		assert.Greater(t, faceNormal(i).Z, 0.0)
	}

	// side wall of edge 0 -> 1
	assert.Equal(t, []int{0, 4, 5, 0, 5, 1}, m.Triangles[12:18])
	// closing edge 3 -> 0
	assert.Equal(t, []int{3, 7, 4, 3, 4, 0}, m.Triangles[30:36])
}

func TestBuildSolidCounts(t *testing.T) {
	for n := 3; n <= 12; n++ {
		footprint := make([]r3.Vector, n)
		for i := range footprint {
			angle := 2 * math.Pi * float64(i) / float64(n)
			footprint[i] = r3.Vector{X: 5 * math.Cos(angle), Y: 5 * math.Sin(angle), Z: -3}
		}

		m, err := BuildSolid(footprint, 7)
		require.NoError(t, err)
		assert.Len(t, m.Vertices, 2*n)
		assert.Equal(t, 2*(n-2)+2*n, m.TriangleCount())
		assert.NoError(t, m.Validate())
		assert.InDelta(t, 4, m.Bounds.Max.Z, 1e-12)
	}
}

func TestBuildSolidDegenerate(t *testing.T) {
	_, err := BuildSolid(square(0)[:2], 10)

	var degenerate *DegenerateFootprintError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, 2, degenerate.Points)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestNormals(t *testing.T) {
	m, err := BuildSolid(square(0), 10)
	require.NoError(t, err)

	for i, nrm := range m.Normals {
		assert.InDelta(t, 1, nrm.Norm(), 1e-9, "normal %d not unit length", i)
	}

	m = &Mesh{
		Vertices:  []r3.Vector{{}, {X: 1}, {X: 2}},
		Triangles: []int{0, 1, 2},
	}
	m.RecalculateNormals()
	for _, nrm := range m.Normals {
		assert.Equal(t, r3.Vector{}, nrm)
	}
}

func TestValidate(t *testing.T) {
	m := &Mesh{Vertices: []r3.Vector{{}, {}, {}}, Triangles: []int{0, 1, 3}}
	assert.Error(t, m.Validate())

	m = &Mesh{Vertices: []r3.Vector{{}, {}, {}}, Triangles: []int{0, 1}}
	assert.Error(t, m.Validate())

	m, err := BuildSolid(square(0), 1)
	require.NoError(t, err)
	m.Triangles = m.Triangles[:len(m.Triangles)-3]
	assert.Error(t, m.Validate())
}

func TestForBuilding(t *testing.T) {
	bounds := proj.ComputeBounds(nil, proj.Location{}, 0.001)
	lonlat := [][2]float64{{0, 0}, {0.00001, 0}, {0.00001, 0.00001}, {0, 0.00001}}

	nodes := make([]*mapgraph.Node, len(lonlat))
	for i, ll := range lonlat {
		nodes[i] = &mapgraph.Node{ID: uint32(i + 1), Position: bounds.Position(ll[0], ll[1])}
		nodes[i].Position.SetElevation(12)
	}

	way := &mapgraph.Way{ID: 1, Nodes: append(nodes, nodes[0])}
	b := &mapgraph.Building{ID: 1, Ways: []*mapgraph.Way{way}}

	m, err := ForBuilding(b, DefaultDepth)
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 8)
	assert.Equal(t, 12, m.TriangleCount())
	assert.Equal(t, -12.0, m.Vertices[0].Z)
	assert.Equal(t, -2.0, m.Vertices[4].Z)
	assert.InDelta(t, 0.00001*proj.MetersPerDegree, m.Vertices[2].Y, 1e-6)
}
