package export

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/config"
	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/mapgraph"
)

// Table names relative to the configured prefix
const (
	HighwaysSuffix  = "_highways"
	WaterwaysSuffix = "_waterways"
	BuildingsSuffix = "_buildings"
)

const tableSchema = `
	CREATE TABLE IF NOT EXISTS %s (
		id BIGINT PRIMARY KEY,
		class TEXT NOT NULL,
		source TEXT NOT NULL,
		tags JSONB,
		area DOUBLE PRECISION,
		geom geometry(Geometry, %d)
	)`

// PostGISStats holds the number of rows written per table
type PostGISStats struct {
	Highways  int64
	Waterways int64
	Buildings int64
}

// PostGIS writes derived records into PostGIS tables
type PostGIS struct {
	pool   *pgxpool.Pool
	schema string
	prefix string
}

// NewPostGIS connects to the database described by cfg
func NewPostGIS(ctx context.Context, cfg *config.Config) (*PostGIS, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Workers)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &PostGIS{
		pool:   pool,
		schema: cfg.DBSchema,
		prefix: cfg.TablePrefix,
	}, nil
}

// Close closes connections
func (p *PostGIS) Close() {
	p.pool.Close()
}

// TableNames returns the schema-qualified table names in write order
func (p *PostGIS) TableNames() []string {
	return TableNames(p.schema, p.prefix)
}

// TableNames returns the schema-qualified highway, waterway and building tables
func TableNames(schema, prefix string) []string {
	names := []string{prefix + HighwaysSuffix, prefix + WaterwaysSuffix, prefix + BuildingsSuffix}
	for i, n := range names {
		names[i] = pgx.Identifier{schema, n}.Sanitize()
	}
	return names
}

// EnsureTables creates the PostGIS extension, the schema and the tables
func (p *PostGIS) EnsureTables(ctx context.Context, dropExisting bool) error {
	log := logger.Get()

	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}

	if p.schema != "public" {
		if _, err := p.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{p.schema}.Sanitize())); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	for _, name := range p.TableNames() {
		if dropExisting {
			log.Info("Dropping table", zap.String("table", name))
			if _, err := p.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", name)); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", name, err)
			}
		}

		log.Info("Creating table", zap.String("table", name))
		if _, err := p.pool.Exec(ctx, fmt.Sprintf(tableSchema, name, SRID)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}

	return nil
}

// Write copies the highways, waterways and buildings of g into their tables
func (p *PostGIS) Write(ctx context.Context, g *mapgraph.Graph, filters Filters) (PostGISStats, error) {
	log := logger.Get()
	var stats PostGISStats

	names := p.TableNames()
	batches := []struct {
		table    string
		features []Feature
		count    *int64
	}{
		{names[0], HighwayFeatures(g, filters.Highways), &stats.Highways},
		{names[1], WaterwayFeatures(g, filters.Waterways), &stats.Waterways},
		{names[2], BuildingFeatures(g, filters.Buildings), &stats.Buildings},
	}

	for _, b := range batches {
		count, err := p.copyFeatures(ctx, b.table, b.features)
		if err != nil {
			return stats, err
		}
		*b.count = count
		log.Info("Loaded table", zap.String("table", b.table), zap.Int64("rows", count))
	}

	return stats, nil
}

// copyFeatures COPYs features into a temp table and moves them into the
// target with the EWKB converted to geometry
func (p *PostGIS) copyFeatures(ctx context.Context, table string, features []Feature) (int64, error) {
	if len(features) == 0 {
		return 0, nil
	}

	rows, err := FeatureRows(features)
	if err != nil {
		return 0, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tempTable := "osmworld_load_tmp"
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		DROP TABLE IF EXISTS %s;
		CREATE TEMP TABLE %s (
			id BIGINT,
			class TEXT,
			source TEXT,
			tags TEXT,
			area DOUBLE PRECISION,
			geom_wkb BYTEA
		) ON COMMIT DROP`, tempTable, tempTable)); err != nil {
		return 0, fmt.Errorf("failed to create temp table: %w", err)
	}

	count, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{tempTable},
		[]string{"id", "class", "source", "tags", "area", "geom_wkb"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("COPY to %s failed: %w", table, err)
	}

	// EWKB already carries the SRID
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (id, class, source, tags, area, geom)
		SELECT id, class, source, tags::jsonb, area, ST_GeomFromEWKB(geom_wkb)
		FROM %s
		ON CONFLICT (id) DO UPDATE SET
			class = EXCLUDED.class,
			source = EXCLUDED.source,
			tags = EXCLUDED.tags,
			area = EXCLUDED.area,
			geom = EXCLUDED.geom`, table, tempTable)
	if _, err := tx.Exec(ctx, insertSQL); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return count, nil
}

// CreateIndexes builds the spatial index of every table and analyzes it
func (p *PostGIS) CreateIndexes(ctx context.Context) error {
	for i, name := range p.TableNames() {
		short := p.prefix + []string{HighwaysSuffix, WaterwaysSuffix, BuildingsSuffix}[i]
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
			pgx.Identifier{short + "_geom_idx"}.Sanitize(), name)
		if _, err := p.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
		if _, err := p.pool.Exec(ctx, fmt.Sprintf("ANALYZE %s", name)); err != nil {
			return fmt.Errorf("failed to analyze %s: %w", name, err)
		}
	}
	return nil
}

// FeatureRows converts features to COPY rows: id, class, source, tags, area, geom_wkb
func FeatureRows(features []Feature) ([][]any, error) {
	rows := make([][]any, 0, len(features))
	for i := range features {
		f := &features[i]
		wkb, err := f.EWKB()
		if err != nil {
			return nil, fmt.Errorf("failed to encode geometry of %d: %w", f.ID, err)
		}

		var area any
		if f.Area > 0 {
			area = f.Area
		}
		rows = append(rows, []any{int64(f.ID), f.Class, f.Source, f.Tags, area, wkb})
	}
	return rows, nil
}
