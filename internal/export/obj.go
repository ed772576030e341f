package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/wegman-software/osmworld/internal/mesh"
)

// NamedMesh is a mesh with the object name written to the OBJ file
type NamedMesh struct {
	Name string
	Mesh *mesh.Mesh
}

// OBJStats counts what WriteOBJ emitted
type OBJStats struct {
	Objects   int
	Vertices  int
	Triangles int
}

// WriteOBJ writes meshes as Wavefront OBJ, one object per mesh. Face indices
// are 1-based and global across objects.
func WriteOBJ(w io.Writer, meshes []NamedMesh) (OBJStats, error) {
	var stats OBJStats
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, "# osmworld building meshes"); err != nil {
		return stats, err
	}

	offset, normalOffset := 1, 1
	for _, nm := range meshes {
		m := nm.Mesh
		if m == nil {
			continue
		}
		withNormals := len(m.Normals) == len(m.Vertices)

		fmt.Fprintf(bw, "o %s\n", nm.Name)
		for _, v := range m.Vertices {
			fmt.Fprintf(bw, "v %s %s %s\n", formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
		}
		if withNormals {
			for _, n := range m.Normals {
				fmt.Fprintf(bw, "vn %s %s %s\n", formatFloat(n.X), formatFloat(n.Y), formatFloat(n.Z))
			}
		}
		for t := 0; t+2 < len(m.Triangles); t += 3 {
			a, b, c := m.Triangles[t], m.Triangles[t+1], m.Triangles[t+2]
			if withNormals {
				fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n",
					a+offset, a+normalOffset, b+offset, b+normalOffset, c+offset, c+normalOffset)
			} else {
				fmt.Fprintf(bw, "f %d %d %d\n", a+offset, b+offset, c+offset)
			}
		}

		offset += len(m.Vertices)
		if withNormals {
			normalOffset += len(m.Normals)
		}
		stats.Objects++
		stats.Vertices += len(m.Vertices)
		stats.Triangles += m.TriangleCount()
	}

	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("failed to write OBJ: %w", err)
	}
	return stats, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
