package cmd

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/fetch"
	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/proj"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the map around a location",
	Long: `Download the OSM XML extract covering --lon/--lat at --zoom.

With --save the document is stored in the cache directory as
<prefix><timestamp>.osm; with --output it is written to the given path.`,
	Args: cobra.NoArgs,
	Run:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&cfg.SaveMap, "save", cfg.SaveMap, "Save the document in the cache directory")
	fetchCmd.Flags().StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Cache directory")
	fetchCmd.Flags().StringVar(&cfg.CachePrefix, "cache-prefix", cfg.CachePrefix, "Cache file name prefix")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Write the document to this path")
}

func runFetch(cmd *cobra.Command, args []string) {
	log := logger.Get()

	zoom, err := proj.ParseZoom(cfg.Zoom)
	if err != nil {
		exitWithError("invalid zoom", err)
	}
	if !cfg.SaveMap && fetchOutput == "" {
		exitWithError("nothing to do: use --save or --output", nil)
	}

	ctx, cancel := signalContext()
	defer cancel()

	extent, err := cfg.FetchExtent()
	if err != nil {
		exitWithError("invalid extent", err)
	}
	bbox := proj.ComputeBounds(nil, cfg.Location(), zoom.Radius()).BBox()
	if extent != nil {
		bbox = extent.Array()
	}
	fetcher := fetch.NewFetcher(cfg.MapAPIURL, fetch.DefaultClient())

	start := time.Now()
	data, err := fetcher.Fetch(ctx, bbox)
	if err != nil {
		exitWithError("fetch failed", err)
	}

	if cfg.SaveMap {
		path, err := fetch.NewCache(cfg.CacheDir, cfg.CachePrefix).Save(data, time.Now())
		if err != nil {
			exitWithError("failed to save map data", err)
		}
		log.Info("Saved map data", zap.String("path", path))
	}
	if fetchOutput != "" {
		if err := os.WriteFile(fetchOutput, data, 0644); err != nil {
			exitWithError("failed to write map data", err)
		}
		log.Info("Wrote map data", zap.String("path", fetchOutput))
	}

	log.Info("Fetch complete", elapsedField(start),
		zap.String("url", fetcher.MapURL(bbox)),
		zap.String("size", humanize.Bytes(uint64(len(data)))))
}
