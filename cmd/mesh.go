package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osmworld/internal/export"
	"github.com/wegman-software/osmworld/internal/logger"
)

var meshOutput string

var meshCmd = &cobra.Command{
	Use:   "mesh [input.osm]",
	Short: "Write building meshes as Wavefront OBJ",
	Long: `Load a map and write one OBJ object per building mesh.

Building heights come from building_height(tags) in the --style Lua script
when given, otherwise from --depth. Buildings whose footprint cannot be
triangulated are skipped and logged.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runMesh,
}

func init() {
	rootCmd.AddCommand(meshCmd)

	meshCmd.Flags().StringVarP(&meshOutput, "output", "o", "buildings.obj", "OBJ output path")
}

func runMesh(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	log := logger.Get()

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

	f, err := os.Create(meshOutput)
	if err != nil {
		exitWithError("failed to create OBJ file", err)
	}

	stats, err := export.WriteOBJ(f, model.NamedMeshes())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		exitWithError("failed to write OBJ file", err)
	}

	log.Info("Meshes written", elapsedField(start),
		zap.String("path", meshOutput),
		zap.Int("objects", stats.Objects),
		zap.Int("vertices", stats.Vertices),
		zap.Int("triangles", stats.Triangles),
		zap.Int("skipped", len(model.MeshErrors)))
}
