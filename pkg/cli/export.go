package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/herbtrace/pkg/models"
)

// ValidOutputs defines the allowed provenance output formats.
var ValidOutputs = []string{"json", "yaml"}

// ProvenanceOptions holds flags for the provenance command.
type ProvenanceOptions struct {
	*RootOptions
	Output string
}

// NewProvenanceCommand creates the provenance command.
func NewProvenanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProvenanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "provenance <batch-id>",
		Short: "Print a batch's provenance record",
		Long: `Print the consumer-facing provenance record for a batch: its
collection points, processing timeline, lab results and certification
summary.

Examples:
  herbtrace provenance ASH-001
  herbtrace provenance ASH-001 --output yaml`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidOutputs, opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, ValidOutputs)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, func(ctx context.Context, a *app) error {
				p, err := a.provenance.AssembleProvenance(ctx, args[0])
				if err != nil {
					return fmt.Errorf("batch %s: %w", args[0], err)
				}
				return writeProvenance(cmd.OutOrStdout(), p, opts.Output)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "json", "output format (json|yaml)")
	return cmd
}

// writeProvenance renders p using the same field names as the HTTP API.
func writeProvenance(w io.Writer, p *models.Provenance, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml":
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode provenance: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to decode provenance: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to write yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output %q", format)
	}
}

// LocatorOptions holds flags for the locator command.
type LocatorOptions struct {
	*RootOptions
	OutFile string
}

// NewLocatorCommand creates the locator command.
func NewLocatorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocatorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "locator <batch-id>",
		Short: "Write a batch's QR code to a PNG file",
		Long: `Write the QR code pointing at a batch's provenance page.

A batch created while the locator could not be generated gets one now.

Examples:
  herbtrace locator ASH-001 -o ash-001.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.OutFile
			if out == "" {
				out = args[0] + ".png"
			}
			return withApp(cmd.Context(), rootOpts, func(ctx context.Context, a *app) error {
				loc, err := a.batches.Locator(ctx, args[0])
				if err != nil {
					return fmt.Errorf("batch %s: %w", args[0], err)
				}
				if err := os.WriteFile(out, loc.PNG, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", loc.URL, out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.OutFile, "out", "o", "", "PNG file to write (default: <batch-id>.png)")
	return cmd
}

// withApp connects to the database, wires the services without metrics and
// runs fn with a connection scope in ctx.
func withApp(ctx context.Context, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := newApp(cfg, db, nil, logger)
	if err != nil {
		return err
	}

	ctx, release, err := db.WithScope(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx, a)
}
