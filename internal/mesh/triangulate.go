// Package mesh turns building footprints into extruded solid meshes.
package mesh

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
)

var (
	ErrTooFewPoints   = errors.New("footprint needs at least 3 points")
	ErrDuplicatePoint = errors.New("footprint has consecutive duplicate points")
	ErrZeroArea       = errors.New("footprint has zero area")
	ErrNoEar          = errors.New("no ear found, footprint is not a simple polygon")
)

// Triangulate splits a simple polygon into n-2 triangles by ear clipping.
// The result holds indices into points, three per triangle, each triangle
// counter-clockwise. The polygon may be given in either orientation and
// must not repeat its first point at the end.
func Triangulate(points []r2.Point) ([]int, error) {
	n := len(points)
	if n < 3 {
		return nil, ErrTooFewPoints
	}
	for i := range points {
		if points[i] == points[(i+1)%n] {
			return nil, ErrDuplicatePoint
		}
	}

	area := signedArea(points)
	eps := epsilon(points)
	if math.Abs(area) <= eps {
		return nil, ErrZeroArea
	}

	// Work on a counter-clockwise index ring
	ring := make([]int, n)
	for i := range ring {
		if area > 0 {
			ring[i] = i
		} else {
			ring[i] = n - 1 - i
		}
	}

	out := make([]int, 0, 3*(n-2))
	for len(ring) > 3 {
		i := findEar(points, ring, eps, false)
		if i < 0 {
			// Collinear vertices only form zero-area ears
			i = findEar(points, ring, eps, true)
		}
		if i < 0 {
			return nil, ErrNoEar
		}

		m := len(ring)
		prev, cur, next := ring[(i+m-1)%m], ring[i], ring[(i+1)%m]
		out = append(out, prev, cur, next)
		ring = append(ring[:i], ring[i+1:]...)
	}
	out = append(out, ring[0], ring[1], ring[2])
	return out, nil
}

// findEar returns the position in ring of a clippable vertex, or -1
func findEar(points []r2.Point, ring []int, eps float64, allowFlat bool) int {
	m := len(ring)
	for i := 0; i < m; i++ {
		a := points[ring[(i+m-1)%m]]
		b := points[ring[i]]
		c := points[ring[(i+1)%m]]

		turn := cross(a, b, c)
		if allowFlat {
			if math.Abs(turn) > eps {
				continue
			}
		} else if turn <= eps {
			continue
		}

		if allowFlat || !containsAny(points, ring, i, a, b, c) {
			return i
		}
	}
	return -1
}

// containsAny reports whether a ring vertex other than the candidate ear's
// corners lies inside or on triangle abc
func containsAny(points []r2.Point, ring []int, ear int, a, b, c r2.Point) bool {
	m := len(ring)
	for k := 0; k < m; k++ {
		if k == ear || k == (ear+m-1)%m || k == (ear+1)%m {
			continue
		}
		p := points[ring[k]]
		if p == a || p == b || p == c {
			continue
		}
		if cross(a, b, p) >= 0 && cross(b, c, p) >= 0 && cross(c, a, p) >= 0 {
			return true
		}
	}
	return false
}

// cross returns the z component of (b-a) x (c-b)
func cross(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(b))
}

func signedArea(points []r2.Point) float64 {
	var sum float64
	for i := range points {
		sum += points[i].Cross(points[(i+1)%len(points)])
	}
	return sum / 2
}

// epsilon scales the collinearity tolerance to the footprint extent
func epsilon(points []r2.Point) float64 {
	rect := r2.RectFromPoints(points...)
	size := rect.Size()
	extent := math.Max(size.X, size.Y)
	return extent * extent * 1e-12
}
