package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/logger"
	"github.com/wegman-software/osmworld/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load [input.osm]",
	Short: "Load a map and print a summary",
	Long: `Load a map into memory and print what it contains.

The map is read from the given file (plain or .gz XML). Without a file it is
downloaded from the map API around --lon/--lat at --zoom. The load:
  1. Resolves nodes, ways and relations in document order
  2. Optionally enriches nodes with elevations, chunk by chunk
  3. Classifies highways, waterways and buildings from their tags
  4. Extrudes every building into a solid mesh`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := newSession(ctx)
	if err != nil {
		exitWithError("failed to prepare load", err)
	}
	defer s.Close()

	start := time.Now()
	model, err := s.load(ctx)
	if err != nil {
		exitWithError("load failed", err)
	}

	logger.Get().Info("Load complete", elapsedField(start),
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("skipped_buildings", len(model.MeshErrors)))
	printSummary(cmd.OutOrStdout(), model)
}

func printSummary(w io.Writer, m *pipeline.Model) {
	g := m.Graph
	comma := func(n int) string { return humanize.Comma(int64(n)) }

	fmt.Fprintf(w, "source:      %s\n", m.Source)
	fmt.Fprintf(w, "bounds:      %s\n", g.Bounds())
	fmt.Fprintf(w, "nodes:       %s\n", comma(g.Nodes().Len()))
	fmt.Fprintf(w, "ways:        %s\n", comma(g.Ways().Len()))
	fmt.Fprintf(w, "relations:   %s\n", comma(g.Relations().Len()))
	fmt.Fprintf(w, "highways:    %s\n", comma(g.Highways().Len()))
	fmt.Fprintf(w, "waterways:   %s\n", comma(g.Waterways().Len()))
	fmt.Fprintf(w, "buildings:   %s (%s meshes, %s skipped)\n",
		comma(g.Buildings().Len()), comma(len(m.Meshes)), comma(len(m.MeshErrors)))
	fmt.Fprintf(w, "unresolved:  %s\n", comma(g.Unresolved()))
	if g.Duplicates() > 0 {
		fmt.Fprintf(w, "duplicates:  %s\n", comma(g.Duplicates()))
	}
	if m.Elevation.Requests > 0 {
		fmt.Fprintf(w, "elevation:   %d requests, %d failed\n", m.Elevation.Requests, m.Elevation.Failed)
	}
	fmt.Fprintf(w, "load time:   %s\n", m.Duration.Round(time.Millisecond))
}
