package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osmworld/internal/mapgraph"
	"github.com/wegman-software/osmworld/internal/mesh"
	"github.com/wegman-software/osmworld/internal/style"
)

const testMap = `<osm>
  <bounds minlon="0" minlat="0" maxlon="0.01" maxlat="0.01"/>
  <node id="1" lon="0.001" lat="0.001"/>
  <node id="2" lon="0.002" lat="0.001"/>
  <node id="3" lon="0.002" lat="0.002"/>
  <node id="4" lon="0.001" lat="0.002"><tag k="name" v="corner"/></node>
  <way id="10">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/><nd ref="4"/><nd ref="1"/>
    <tag k="building" v="yes"/>
  </way>
  <way id="11">
    <nd ref="1"/><nd ref="3"/><nd ref="99"/>
    <tag k="highway" v="primary"/>
    <tag k="name" v="Main"/>
  </way>
  <way id="12"><nd ref="2"/><tag k="highway" v="service"/></way>
  <way id="13"><nd ref="2"/><nd ref="3"/><tag k="waterway" v="canal"/></way>
  <relation id="20">
    <member type="way" ref="11" role="outer"/>
    <member type="way" ref="13" role="outer"/>
    <tag k="natural" v="water"/>
    <tag k="building" v="roof"/>
  </relation>
</osm>`

func loadGraph(t *testing.T) *mapgraph.Graph {
	t.Helper()
	g, err := mapgraph.Parse(context.Background(), strings.NewReader(testMap), mapgraph.Options{})
	require.NoError(t, err)
	return g
}

func TestHighwayFeatures(t *testing.T) {
	features := HighwayFeatures(loadGraph(t), nil)

	// way 12 has a single node and is skipped
	require.Len(t, features, 1)
	f := features[0]
	assert.Equal(t, uint32(11), f.ID)
	assert.Equal(t, "primary", f.Class)
	assert.Equal(t, "way", f.Source)
	assert.JSONEq(t, `{"highway":"primary","name":"Main"}`, f.Tags)

	line, ok := f.Geom.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{0.001, 0.001}, {0.002, 0.002}}, line)
}

func TestWaterwayFeatures(t *testing.T) {
	features := WaterwayFeatures(loadGraph(t), nil)
	require.Len(t, features, 2)

	assert.Equal(t, uint32(13), features[0].ID)
	assert.Equal(t, "canal", features[0].Class)
	_, ok := features[0].Geom.(orb.LineString)
	assert.True(t, ok)

	assert.Equal(t, uint32(20), features[1].ID)
	assert.Equal(t, "lake", features[1].Class)
	assert.Equal(t, "relation", features[1].Source)
	mls, ok := features[1].Geom.(orb.MultiLineString)
	require.True(t, ok)
	assert.Len(t, mls, 2)
}

func TestBuildingFeatures(t *testing.T) {
	features := BuildingFeatures(loadGraph(t), nil)
	require.Len(t, features, 2)

	poly, ok := features[0].Geom.(orb.Polygon)
	require.True(t, ok, "closed building way should be a polygon")
	require.Len(t, poly, 1)
	assert.Len(t, poly[0], 5)
	assert.True(t, poly[0].Closed())

	// 0.001 degree square in the planar frame
	side := 0.001 * 111319.9
	assert.InDelta(t, side*side, features[0].Area, 1e-3)

	_, ok = features[1].Geom.(orb.MultiLineString)
	assert.True(t, ok)
	assert.Equal(t, "relation", features[1].Source)
}

func TestFeatureFilters(t *testing.T) {
	cfg, err := style.ParseConfig([]byte(`
buildings:
  exclude:
    building: [roof]
highways:
  include:
    highway: [motorway]
`))
	require.NoError(t, err)
	filters := FiltersFromConfig(cfg)
	g := loadGraph(t)

	assert.Empty(t, HighwayFeatures(g, filters.Highways))
	buildings := BuildingFeatures(g, filters.Buildings)
	require.Len(t, buildings, 1)
	assert.Equal(t, uint32(10), buildings[0].ID)
	assert.Len(t, WaterwayFeatures(g, filters.Waterways), 2)
}

func TestFeatureRows(t *testing.T) {
	g := loadGraph(t)
	rows, err := FeatureRows(BuildingFeatures(g, nil))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	row := rows[0]
	require.Len(t, row, 6)
	assert.Equal(t, int64(10), row[0])
	assert.Equal(t, "building", row[1])
	assert.InDelta(t, 12392.12, row[4], 0.1)

	geom, srid, err := ewkb.Unmarshal(row[5].([]byte))
	require.NoError(t, err)
	assert.Equal(t, SRID, srid)
	_, ok := geom.(orb.Polygon)
	assert.True(t, ok)
}

func TestTableNames(t *testing.T) {
	names := TableNames("public", "osmworld")
	assert.Equal(t, []string{
		`"public"."osmworld_highways"`,
		`"public"."osmworld_waterways"`,
		`"public"."osmworld_buildings"`,
	}, names)
}

func TestWriteNodesParquet(t *testing.T) {
	g := loadGraph(t)
	path := filepath.Join(t.TempDir(), "nodes.parquet")

	n, err := WriteNodesParquet(path, g, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	tbl := readParquet(t, path)
	defer tbl.Release()

	assert.Equal(t, int64(4), tbl.NumRows())
	assert.Equal(t, "id", tbl.Schema().Field(0).Name)
	assert.Equal(t, "tags", tbl.Schema().Field(7).Name)

	ids := tbl.Column(0).Data().Chunk(0).(*array.Int64)
	assert.Equal(t, int64(1), ids.Value(0))
}

func TestWriteFeaturesParquet(t *testing.T) {
	g := loadGraph(t)
	path := filepath.Join(t.TempDir(), "features.parquet")

	n, err := WriteFeaturesParquet(path, g, Filters{}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	tbl := readParquet(t, path)
	defer tbl.Release()
	assert.Equal(t, int64(5), tbl.NumRows())
}

func readParquet(t *testing.T, path string) arrow.Table {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	pf, err := file.NewParquetReader(f)
	require.NoError(t, err)
	t.Cleanup(func() { pf.Close() })

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)

	tbl, err := reader.ReadTable(context.Background())
	require.NoError(t, err)
	return tbl
}

func TestWriteOBJ(t *testing.T) {
	square := []r3.Vector{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	m1, err := mesh.BuildSolid(square, 10)
	require.NoError(t, err)
	m2, err := mesh.BuildSolid(square[:3], 5)
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := WriteOBJ(&buf, []NamedMesh{{Name: "building_1", Mesh: m1}, {Name: "building_2", Mesh: m2}, {Name: "empty"}})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Objects)
	assert.Equal(t, 14, stats.Vertices)
	assert.Equal(t, 12+8, stats.Triangles)

	out := buf.String()
	assert.Equal(t, 14, strings.Count(out, "\nv "))
	assert.Equal(t, 14, strings.Count(out, "\nvn "))
	assert.Equal(t, 20, strings.Count(out, "\nf "))
	assert.Contains(t, out, "o building_1\n")
	assert.Contains(t, out, "o building_2\n")

	// second object's indices start after the first object's 8 vertices
	idx := strings.Index(out, "o building_2\n")
	for _, line := range strings.Split(out[idx:], "\n") {
		if strings.HasPrefix(line, "f ") {
			assert.NotContains(t, " "+line[2:], " 1//", "face references first object")
		}
	}
}

func TestWriteOBJFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.obj")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	stats, err := WriteOBJ(f, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Objects)
}
