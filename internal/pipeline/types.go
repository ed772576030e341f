package pipeline

import (
	"fmt"
	"time"

	"github.com/wegman-software/osmworld/internal/elevation"
	"github.com/wegman-software/osmworld/internal/export"
	"github.com/wegman-software/osmworld/internal/mapgraph"
	"github.com/wegman-software/osmworld/internal/mesh"
)

// Model is the result of one successful load. It is read-only once published.
type Model struct {
	Graph *mapgraph.Graph

	// Meshes by building id; MeshIDs lists them in building table order
	Meshes  map[uint32]*mesh.Mesh
	MeshIDs []uint32

	// MeshErrors holds the buildings that were skipped
	MeshErrors map[uint32]error

	Elevation elevation.Stats
	Source    string
	LoadedAt  time.Time
	Duration  time.Duration
}

// NamedMeshes returns the meshes in building order, named building_<id>
func (m *Model) NamedMeshes() []export.NamedMesh {
	out := make([]export.NamedMesh, 0, len(m.MeshIDs))
	for _, id := range m.MeshIDs {
		out = append(out, export.NamedMesh{
			Name: fmt.Sprintf("building_%d", id),
			Mesh: m.Meshes[id],
		})
	}
	return out
}
