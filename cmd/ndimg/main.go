package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-ndimg"
	"github.com/twpayne/go-ndimg/internal/config"
)

type app struct {
	configPath string
	config     config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "ndimg",
		Short:         "Create, traverse, and store N-dimensional images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "ndimg.yaml", "config file")

	rootCmd.AddCommand(a.newOrderCmd(), a.newTIFFCmd())
	return rootCmd
}

// init loads the config file and configures logging.
func (a *app) init(cmd *cobra.Command) error {
	cfg, found, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", a.configPath, err)
	}
	a.config = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logger.Level)); err != nil {
		return fmt.Errorf("logger level: %w", err)
	}
	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOptions)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOptions)
	}
	a.logger = slog.New(handler)
	if !found {
		a.logger.Debug("config file not found, using default config", "path", a.configPath)
	}
	return nil
}

// newContainer returns a new container of the given extents, Blocked if
// blockEdge is positive and Flat otherwise.
func (a *app) newContainer(extents []int, blockEdge int) (ndimg.Container[float32], error) {
	interval, err := ndimg.NewIntervalFromExtents(extents...)
	if err != nil {
		return nil, err
	}
	if blockEdge > 0 {
		a.logger.Debug("creating blocked container", "interval", interval.String(), "blockEdge", blockEdge)
		return ndimg.NewBlocked[float32](interval, blockEdge, 0)
	}
	a.logger.Debug("creating flat container", "interval", interval.String())
	return ndimg.NewFlat[float32](interval, 0)
}

func (a *app) newOrderCmd() *cobra.Command {
	var (
		extents    []int
		blockEdge  int
		localizing bool
	)
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Print the native traversal order of a container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("extents") {
				extents = a.config.Image.Extents
			}
			if !cmd.Flags().Changed("block-edge") {
				blockEdge = a.config.Image.BlockEdge
			}
			container, err := a.newContainer(extents, blockEdge)
			if err != nil {
				return err
			}
			cursor := ndimg.NewCursor(container, localizing)
			for i := 0; cursor.Next(); i++ {
				coord, err := cursor.Coord()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, formatCoord(coord))
			}
			return nil
		},
	}
	orderCmd.Flags().IntSliceVar(&extents, "extents", nil, "extents")
	orderCmd.Flags().IntVar(&blockEdge, "block-edge", 0, "block edge, 0 for a flat container")
	orderCmd.Flags().BoolVar(&localizing, "localizing", false, "use a localizing cursor")
	return orderCmd
}

func (a *app) newTIFFCmd() *cobra.Command {
	tiffCmd := &cobra.Command{
		Use:   "tiff",
		Short: "Read and write tiled TIFF files",
	}

	var (
		extents     []int
		blockEdge   int
		compression string
	)
	writeCmd := &cobra.Command{
		Use:   "write file",
		Short: "Write a ramp image to a tiled TIFF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("extents") {
				extents = a.config.Image.Extents
			}
			if !cmd.Flags().Changed("block-edge") {
				blockEdge = a.config.Image.BlockEdge
			}
			if !cmd.Flags().Changed("compression") {
				compression = a.config.TIFF.Compression
			}
			tiffCompression, err := parseCompression(compression)
			if err != nil {
				return err
			}
			if len(extents) != 2 {
				return fmt.Errorf("%v: TIFF images must be two-dimensional", extents)
			}
			container, err := a.newContainer(extents, blockEdge)
			if err != nil {
				return err
			}
			if err := transform(cmd.Context(), container, func(coord ndimg.Coord, _ float32) float32 {
				return float32(coord[0] + coord[1])
			}); err != nil {
				return err
			}
			file, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			if err := ndimg.WriteTIFF(file, container, ndimg.WithTIFFCompression(tiffCompression)); err != nil {
				return err
			}
			a.logger.Info("wrote TIFF", "file", args[0], "interval", container.Interval().String(), "compression", compression)
			return file.Close()
		},
	}
	writeCmd.Flags().IntSliceVar(&extents, "extents", nil, "extents")
	writeCmd.Flags().IntVar(&blockEdge, "block-edge", 0, "block edge, 0 for a flat container")
	writeCmd.Flags().StringVar(&compression, "compression", "none", "compression (none or zstd)")

	infoCmd := &cobra.Command{
		Use:   "info file",
		Short: "Print information about a tiled TIFF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tiffImage, err := ndimg.OpenTIFF(
				os.DirFS(filepath.Dir(args[0])),
				filepath.Base(args[0]),
				ndimg.WithTIFFTileCacheSize(a.config.TIFF.TileCacheSize),
			)
			if err != nil {
				return err
			}
			defer tiffImage.Close()
			blocked, err := tiffImage.Load(cmd.Context())
			if err != nil {
				return err
			}
			sum := 0.0
			for _, value := range ndimg.All[float32](blocked) {
				sum += float64(value)
			}
			tileWidth, tileLength := tiffImage.TileSize()
			fmt.Fprintf(cmd.OutOrStdout(), "interval: %s\n", tiffImage.Interval())
			fmt.Fprintf(cmd.OutOrStdout(), "tile size: %dx%d\n", tileWidth, tileLength)
			fmt.Fprintf(cmd.OutOrStdout(), "compression: %d\n", tiffImage.Compression())
			fmt.Fprintf(cmd.OutOrStdout(), "sum: %g\n", sum)
			return nil
		},
	}

	tiffCmd.AddCommand(writeCmd, infoCmd)
	return tiffCmd
}

func transform(ctx context.Context, container ndimg.Container[float32], fn ndimg.TransformFunc[float32]) error {
	switch container := container.(type) {
	case *ndimg.Blocked[float32]:
		return container.Transform(ctx, fn)
	case *ndimg.Flat[float32]:
		return container.Transform(ctx, fn)
	default:
		return fmt.Errorf("%T: unsupported container", container)
	}
}

func parseCompression(s string) (ndimg.TIFFCompression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ndimg.TIFFCompressionNone, nil
	case "zstd":
		return ndimg.TIFFCompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%s: unknown compression", s)
	}
}

func formatCoord(coord ndimg.Coord) string {
	components := make([]string, len(coord))
	for i, x := range coord {
		components[i] = fmt.Sprint(x)
	}
	return "(" + strings.Join(components, ", ") + ")"
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
