package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/config"
	"github.com/wegman-software/osmworld/internal/logger"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "osmworld",
	Short: "Turn OSM extracts into a projected map graph and building meshes",
	Long: `osmworld loads an OpenStreetMap XML extract, resolves it into a graph of
nodes, ways and relations, projects every coordinate into a local metric
frame and extrudes buildings into solid meshes.

Features:
  - Local extracts or downloads from the OSM map API, with an on-disk cache
  - Chunked elevation enrichment from an SRTM web service
  - Building heights from a Lua hook
  - Export to PostGIS, Parquet and Wavefront OBJ`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			if err := applyConfigFile(cmd, configFile); err != nil {
				logger.Init(logger.Options{Verbose: cfg.Verbose})
				exitWithError("failed to load config", err)
			}
		}
		logger.Init(logger.Options{Verbose: cfg.Verbose, File: cfg.LogFile})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file; explicit flags take precedence")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose output")
	flags.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Log every parsed element (requires --verbose)")
	flags.IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of parallel mesh workers")

	// Logging and metrics
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Path to log file for persistent logging (JSON format)")
	flags.DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for system metrics logging, 0 disables it")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address (e.g. :9090)")

	// Location and map source
	flags.Float64Var(&cfg.Lon, "lon", cfg.Lon, "Map center longitude when the document has no bounds")
	flags.Float64Var(&cfg.Lat, "lat", cfg.Lat, "Map center latitude when the document has no bounds")
	flags.IntVarP(&cfg.Zoom, "zoom", "z", cfg.Zoom, "Zoom level 0-10, selects the extent around the center")
	flags.StringVar(&cfg.MapAPIURL, "map-api", cfg.MapAPIURL, "OSM map API base URL")
	flags.StringVar(&cfg.Extent, "extent", cfg.Extent, "fetch extent minlon,minlat,maxlon,maxlat (overrides lon/lat/zoom)")
	flags.DurationVar(&cfg.LocationTimeout, "location-timeout", cfg.LocationTimeout, "Time allowed for the location lookup")

	// Elevation
	flags.BoolVar(&cfg.Elevation, "elevation", cfg.Elevation, "Enrich nodes with elevations from the elevation service")
	flags.StringVar(&cfg.ElevationURL, "elevation-url", cfg.ElevationURL, "Elevation service URL")
	flags.StringVar(&cfg.ElevationUser, "elevation-user", cfg.ElevationUser, "Elevation service username")
	flags.IntVar(&cfg.ElevationBatchSize, "elevation-batch", cfg.ElevationBatchSize, "Nodes per elevation request")
	flags.DurationVar(&cfg.ElevationTimeout, "elevation-timeout", cfg.ElevationTimeout, "Timeout of one elevation request")

	// Meshes and filters
	flags.Float64Var(&cfg.ExtrusionDepth, "depth", cfg.ExtrusionDepth, "Default building extrusion depth in meters")
	flags.StringVarP(&cfg.StyleFile, "style", "S", cfg.StyleFile, "Lua script defining building_height(tags)")
	flags.StringVar(&cfg.FilterFile, "filter", cfg.FilterFile, "YAML tag filters for exports and meshes")

	// Database
	flags.StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	flags.IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	flags.StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	flags.StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	flags.StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	flags.StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
	flags.StringVar(&cfg.TablePrefix, "table-prefix", cfg.TablePrefix, "Prefix of the exported tables")
}

// applyConfigFile loads path over the defaults and re-applies every flag
// given on the command line
func applyConfigFile(cmd *cobra.Command, path string) error {
	explicit := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	*cfg = *loaded

	for name, value := range explicit {
		if err := cmd.Flags().Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}

// elapsedField rounds durations the way every command reports them
func elapsedField(start time.Time) zap.Field {
	return zap.Duration("duration", time.Since(start).Round(time.Millisecond))
}
