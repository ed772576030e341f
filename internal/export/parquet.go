package export

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osmworld/internal/mapgraph"
)

// DefaultBatchSize is the number of rows buffered before a record batch is written
const DefaultBatchSize = 10000

// batchWriter buffers rows in an arrow record builder and flushes them to
// a zstd-compressed Parquet file
type batchWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	total     int64
}

func newBatchWriter(path string, schema *arrow.Schema, batchSize int) (*batchWriter, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &batchWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

// appended records one row added to the builder
func (w *batchWriter) appended() error {
	w.count++
	w.total++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *batchWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Rows returns the number of rows written so far
func (w *batchWriter) Rows() int64 {
	return w.total
}

// Close flushes pending rows and closes the file
func (w *batchWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.writer.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		return err
	}
	// The parquet writer closes its sink
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// NodeWriter writes nodes with both coordinate frames to Parquet
type NodeWriter struct {
	*batchWriter
}

// NodeSchema is the column layout written by NodeWriter
var NodeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "lon", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "lat", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "elevation", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "y", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "z", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

// NewNodeWriter creates a new node Parquet writer
func NewNodeWriter(path string, batchSize int) (*NodeWriter, error) {
	w, err := newBatchWriter(path, NodeSchema, batchSize)
	if err != nil {
		return nil, err
	}
	return &NodeWriter{w}, nil
}

// Write writes a node
func (w *NodeWriter) Write(n *mapgraph.Node) error {
	geo, planar := n.Position.Geographic, n.Position.Planar
	w.builder.Field(0).(*array.Int64Builder).Append(int64(n.ID))
	w.builder.Field(1).(*array.Float64Builder).Append(geo.Lon)
	w.builder.Field(2).(*array.Float64Builder).Append(geo.Lat)
	w.builder.Field(3).(*array.Float64Builder).Append(geo.Elevation)
	w.builder.Field(4).(*array.Float64Builder).Append(planar.X)
	w.builder.Field(5).(*array.Float64Builder).Append(planar.Y)
	w.builder.Field(6).(*array.Float64Builder).Append(planar.Z)
	w.builder.Field(7).(*array.StringBuilder).Append(n.Tags.JSON())
	return w.appended()
}

// FeatureWriter writes derived records with EWKB geometries to Parquet
type FeatureWriter struct {
	*batchWriter
}

// FeatureSchema is the column layout written by FeatureWriter
var FeatureSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "class", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "source", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "area", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
}, nil)

// NewFeatureWriter creates a new feature Parquet writer
func NewFeatureWriter(path string, batchSize int) (*FeatureWriter, error) {
	w, err := newBatchWriter(path, FeatureSchema, batchSize)
	if err != nil {
		return nil, err
	}
	return &FeatureWriter{w}, nil
}

// Write writes a feature of the given kind (highway, waterway or building)
func (w *FeatureWriter) Write(kind string, f *Feature) error {
	wkb, err := f.EWKB()
	if err != nil {
		return fmt.Errorf("failed to encode geometry of %d: %w", f.ID, err)
	}
	w.builder.Field(0).(*array.Int64Builder).Append(int64(f.ID))
	w.builder.Field(1).(*array.StringBuilder).Append(kind)
	w.builder.Field(2).(*array.StringBuilder).Append(f.Class)
	w.builder.Field(3).(*array.StringBuilder).Append(f.Source)
	w.builder.Field(4).(*array.StringBuilder).Append(f.Tags)
	w.builder.Field(5).(*array.Float64Builder).Append(f.Area)
	w.builder.Field(6).(*array.BinaryBuilder).Append(wkb)
	return w.appended()
}

// WriteNodesParquet writes every node of g to path
func WriteNodesParquet(path string, g *mapgraph.Graph, batchSize int) (int64, error) {
	w, err := NewNodeWriter(path, batchSize)
	if err != nil {
		return 0, err
	}
	for _, n := range g.Nodes().All() {
		if err := w.Write(n); err != nil {
			w.Close()
			return 0, fmt.Errorf("failed to write node %d: %w", n.ID, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Rows(), nil
}

// WriteFeaturesParquet writes the highways, waterways and buildings of g to path
func WriteFeaturesParquet(path string, g *mapgraph.Graph, filters Filters, batchSize int) (int64, error) {
	w, err := NewFeatureWriter(path, batchSize)
	if err != nil {
		return 0, err
	}

	groups := []struct {
		kind     string
		features []Feature
	}{
		{"highway", HighwayFeatures(g, filters.Highways)},
		{"waterway", WaterwayFeatures(g, filters.Waterways)},
		{"building", BuildingFeatures(g, filters.Buildings)},
	}
	for _, group := range groups {
		for i := range group.features {
			if err := w.Write(group.kind, &group.features[i]); err != nil {
				w.Close()
				return 0, err
			}
		}
	}

	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Rows(), nil
}
