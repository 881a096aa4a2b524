package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/xrloop/internal/config"
	"github.com/Iron-Ham/xrloop/internal/extension"
	"github.com/Iron-Ham/xrloop/internal/xr"
	"github.com/Iron-Ham/xrloop/internal/xr/sim"
)

var extensionsCmd = &cobra.Command{
	Use:   "extensions",
	Short: "Show which runtime extensions would be enabled",
	Long: `List the extensions the runtime advertises and mark the ones the
configured required extension and optional patterns would enable.

Exits with an error when the required extension is not advertised.`,
	Args: cobra.NoArgs,
	RunE: runExtensions,
}

var (
	extensionsFormat   string
	extensionsSimulate bool
)

func init() {
	rootCmd.AddCommand(extensionsCmd)

	extensionsCmd.Flags().StringVar(&extensionsFormat, "format", "text", "Output format (text, yaml)")
	extensionsCmd.Flags().BoolVar(&extensionsSimulate, "simulate", false, "Query the built-in simulated runtime")
}

// extensionReport is the yaml shape of the extensions command.
type extensionReport struct {
	Required   string            `yaml:"required"`
	Satisfied  bool              `yaml:"satisfied"`
	Extensions []extensionStatus `yaml:"extensions"`
}

type extensionStatus struct {
	Name    string `yaml:"name"`
	Version uint32 `yaml:"version"`
	Enabled bool   `yaml:"enabled"`
}

func runExtensions(cmd *cobra.Command, args []string) error {
	if extensionsFormat != "text" && extensionsFormat != "yaml" {
		return fmt.Errorf("unknown format %q (expected text or yaml)", extensionsFormat)
	}
	if !extensionsSimulate {
		return errors.New("no runtime loader is linked into this build; pass --simulate")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	report, negotiateErr := buildExtensionReport(sim.New(), cfg.Runtime)
	if report == nil {
		return negotiateErr
	}

	out := cmd.OutOrStdout()
	if extensionsFormat == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		writeExtensionText(out, report)
	}
	return negotiateErr
}

// buildExtensionReport negotiates against rt. A nil report means the
// runtime could not be queried; otherwise the error, if any, is the
// negotiation verdict.
func buildExtensionReport(rt xr.Runtime, cfg config.RuntimeConfig) (*extensionReport, error) {
	n, err := extension.NewNegotiator(rt, cfg.RequiredExtension, cfg.OptionalExtensions, nil)
	if err != nil {
		return nil, err
	}
	advertised, err := n.Advertised()
	if err != nil {
		return nil, err
	}
	set, negotiateErr := n.Negotiate()

	sort.Slice(advertised, func(i, j int) bool { return advertised[i].Name < advertised[j].Name })
	report := &extensionReport{
		Required:  n.Required(),
		Satisfied: negotiateErr == nil,
	}
	for _, p := range advertised {
		report.Extensions = append(report.Extensions, extensionStatus{
			Name:    p.Name,
			Version: p.Version,
			Enabled: set.Has(p.Name),
		})
	}
	return report, negotiateErr
}

func writeExtensionText(w io.Writer, r *extensionReport) {
	status := "advertised"
	if !r.Satisfied {
		status = "MISSING"
	}
	fmt.Fprintf(w, "Required: %s (%s)\n\n", r.Required, status)
	for _, e := range r.Extensions {
		mark := " "
		if e.Enabled {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %-48s v%d\n", mark, e.Name, e.Version)
	}
	fmt.Fprintln(w, "\n* enabled at instance creation")
}
