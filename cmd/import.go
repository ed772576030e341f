package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/export"
	"github.com/wegman-software/osmworld/internal/logger"
)

var (
	createIndexes   bool
	dropExisting    bool
	skipDatabase    bool
	nodesParquet    string
	featuresParquet string
	parquetBatch    int
)

var importCmd = &cobra.Command{
	Use:   "import [input.osm]",
	Short: "Load a map and export it to PostGIS and Parquet",
	Long: `Load a map and write its derived records to PostgreSQL/PostGIS:

  1. <prefix>_highways   one LineString per highway
  2. <prefix>_waterways  LineString, or MultiLineString for relations
  3. <prefix>_buildings  Polygon for closed ways, MultiLineString otherwise

Rows are bulk loaded with COPY. --parquet additionally writes every node
with both coordinate frames, --features-parquet the derived records.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&createIndexes, "create-indexes", true, "Create spatial indexes after loading")
	importCmd.Flags().BoolVar(&dropExisting, "drop-existing", false, "Drop existing tables before loading")
	importCmd.Flags().BoolVar(&skipDatabase, "no-db", false, "Skip the PostGIS export")
	importCmd.Flags().StringVar(&nodesParquet, "parquet", "", "Write nodes to this Parquet file")
	importCmd.Flags().StringVar(&featuresParquet, "features-parquet", "", "Write highways, waterways and buildings to this Parquet file")
	importCmd.Flags().IntVar(&parquetBatch, "parquet-batch", export.DefaultBatchSize, "Rows per Parquet record batch")
}

func runImport(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	log := logger.Get()

	if skipDatabase && nodesParquet == "" && featuresParquet == "" {
		exitWithError("nothing to export: --no-db needs --parquet or --features-parquet", nil)
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := newSession(ctx)
	if err != nil {
		exitWithError("failed to prepare load", err)
	}
	defer s.Close()

	log.Info("Starting osmworld import",
		zap.String("input", cfg.InputFile),
		zap.String("output", fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)),
		zap.String("prefix", cfg.TablePrefix),
		zap.Bool("elevation", cfg.Elevation))

	totalStart := time.Now()
	model, err := s.load(ctx)
	if err != nil {
		exitWithError("load failed", err)
	}

	if nodesParquet != "" {
		start := time.Now()
		n, err := export.WriteNodesParquet(nodesParquet, model.Graph, parquetBatch)
		if err != nil {
			exitWithError("failed to write nodes parquet", err)
		}
		log.Info("Nodes written", elapsedField(start), zap.String("path", nodesParquet), zap.Int64("rows", n))
	}

	if featuresParquet != "" {
		start := time.Now()
		n, err := export.WriteFeaturesParquet(featuresParquet, model.Graph, s.filters, parquetBatch)
		if err != nil {
			exitWithError("failed to write features parquet", err)
		}
		log.Info("Features written", elapsedField(start), zap.String("path", featuresParquet), zap.Int64("rows", n))
	}

	if !skipDatabase {
		db, err := export.NewPostGIS(ctx, cfg)
		if err != nil {
			exitWithError("failed to connect to database", err)
		}
		defer db.Close()

		if err := db.EnsureTables(ctx, dropExisting); err != nil {
			exitWithError("failed to prepare tables", err)
		}

		stats, err := db.Write(ctx, model.Graph, s.filters)
		if err != nil {
			exitWithError("database load failed", err)
		}

		if createIndexes {
			start := time.Now()
			if err := db.CreateIndexes(ctx); err != nil {
				exitWithError("failed to create indexes", err)
			}
			log.Info("Indexes created", elapsedField(start))
		}

		log.Info("Database load complete",
			zap.Int64("highways", stats.Highways),
			zap.Int64("waterways", stats.Waterways),
			zap.Int64("buildings", stats.Buildings))
	}

	log.Info("Import complete",
		zap.Duration("total_time", time.Since(totalStart).Round(time.Second)),
		zap.Int("nodes", model.Graph.Nodes().Len()),
		zap.Int("meshes", len(model.Meshes)))
}
