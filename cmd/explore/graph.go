package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/kenoir/weco-concept-explorer/application/interaction"
	"github.com/kenoir/weco-concept-explorer/domain/graph"
	"github.com/kenoir/weco-concept-explorer/infrastructure/config"
	"github.com/kenoir/weco-concept-explorer/infrastructure/di"
	"github.com/kenoir/weco-concept-explorer/interfaces/render"

	"github.com/spf13/cobra"
)

// graphOptions holds options for the graph command.
type graphOptions struct {
	Depth  int
	Format string
	Width  int
	Height int
	Output string
}

func newGraphCommand() *cobra.Command {
	opts := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph <concept-id>",
		Short: "Build the exploration graph around a concept",
		Long: `Fetch a concept and its related concepts breadth-first and print the
resulting graph. The svg format runs the layout to rest and renders the final
frame centred on the root concept.

Catalogue, cache and layout settings are read from the environment, as for
the API server.`,
		Example: `  # Print the graph as JSON
  explore graph a2b3c4d5

  # Walk three levels and list the nodes
  explore graph a2b3c4d5 --depth 3 --format text

  # Render a picture
  explore graph a2b3c4d5 --format svg --width 1200 --height 900 -o graph.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Levels to expand from the root (0 = configured default)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "Output format (json|text|svg)")
	cmd.Flags().IntVar(&opts.Width, "width", 960, "SVG width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", 600, "SVG height in pixels")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func runGraph(cmd *cobra.Command, conceptID string, opts *graphOptions) error {
	switch opts.Format {
	case "json", "text", "svg":
	default:
		return fmt.Errorf("unknown format %q (want json, text or svg)", opts.Format)
	}
	if opts.Depth < 0 {
		return fmt.Errorf("depth must not be negative")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()
	defer func() { _ = container.Logger.Sync() }()

	out := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if opts.Format == "svg" {
		surface := interaction.Surface{Width: float64(opts.Width), Height: float64(opts.Height)}
		scene, _, err := container.Snapshots.Scene(ctx, conceptID, opts.Depth, surface)
		if err != nil {
			return err
		}
		return render.WriteSVG(out, scene)
	}

	data, err := container.Snapshots.Graph(ctx, conceptID, opts.Depth)
	if err != nil {
		return err
	}
	if opts.Format == "text" {
		return writeText(out, data)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// writeText lists nodes indented by depth, then the graph statistics.
func writeText(w io.Writer, data *graph.Data) error {
	var b strings.Builder
	for _, n := range data.Nodes() {
		fmt.Fprintf(&b, "%s%s (%s)", strings.Repeat("  ", n.Depth), n.Label, n.ID)
		if n.Type != "" {
			fmt.Fprintf(&b, " [%s]", n.Type)
		}
		b.WriteByte('\n')
	}
	if data.IsEmpty() {
		b.WriteString("No related concepts found.\n")
	}
	stats := data.Stats()
	fmt.Fprintf(&b, "\n%d nodes, %d edges, max depth %d\n", stats.NodeCount, stats.EdgeCount, stats.MaxDepth)
	_, err := io.WriteString(w, b.String())
	return err
}
