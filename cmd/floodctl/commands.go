package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/explain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
	"github.com/couchcryptid/flood-risk-service/internal/projection"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

type options struct {
	schemaPath     string
	rulesPath      string
	maxPasses      int
	maxIndividuals int
	zoneKind       string
	verbose        bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "floodctl",
		Short: "Evaluate flood risk readings and inspect the schema offline",
		Long: `floodctl runs the same evaluation as the service against a reading file,
and exposes the ontology listings, visualization graph and inference
explanations on the command line.

Definitions default to the embedded schema and rule corpus.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.schemaPath, "schema", "", "schema definition file (default: embedded)")
	pf.StringVar(&opts.rulesPath, "rules", "", "rule corpus file (default: embedded)")
	pf.IntVar(&opts.maxPasses, "max-passes", 0, "closure pass ceiling (0 derives it from the schema)")
	pf.IntVar(&opts.maxIndividuals, "max-individuals", projection.DefaultMaxIndividuals, "individual cap for the graph")
	pf.StringVar(&opts.zoneKind, "zone-kind", string(explain.DefaultZoneKind), "kind explained entities must carry")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log evaluation details to stderr")

	root.AddCommand(
		newValidateCmd(opts),
		newClassifyCmd(opts),
		newExplainCmd(opts),
		newGraphCmd(opts),
		newStatsCmd(opts),
		newRulesCmd(opts),
	)
	return root
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the definitions and check that closure converges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := schema.Load(opts.schemaPath, opts.rulesPath)
			if err != nil {
				return err
			}
			base, err := pipeline.Baseline(cat, opts.maxPasses)
			if err != nil {
				return err
			}
			st, err := projection.Stats(cat, base)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: %s\n", cat.Source())
			fmt.Fprintf(out, "  classes: %d (depth %d)\n", st.Classes, cat.Depth())
			fmt.Fprintf(out, "  object properties: %d\n", st.ObjectProperties)
			fmt.Fprintf(out, "  data properties: %d\n", st.DataProperties)
			fmt.Fprintf(out, "  individuals: %d\n", st.Individuals)
			fmt.Fprintf(out, "  baseline triples: %d\n", st.TotalTriples)
			fmt.Fprintf(out, "  rules: %d\n", st.Rules)
			return nil
		},
	}
}

func newClassifyCmd(opts *options) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "classify <reading.json|->",
		Short: "Evaluate one reading and print the assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.evaluate(cmd, args[0])
			if err != nil {
				return err
			}
			if !summary {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: risk %s, status %s\n", a.City, a.RiskLevel, a.AlertStatus)
			for _, r := range a.Reasons {
				fmt.Fprintf(out, "  [%d] %s\n", r.Rule, r.Text)
			}
			if a.IncompleteEvidence {
				fmt.Fprintf(out, "  missing: %s\n", strings.Join(a.Missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print a one-screen summary instead of JSON")
	return cmd
}

func newExplainCmd(opts *options) *cobra.Command {
	var zone, property, reading string
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain how a zone could carry a risk level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, r, err := opts.view(cmd, reading)
			if err != nil {
				return err
			}
			ex, err := explain.New(facts.EntityID(opts.zoneKind)).Explain(r, cat.Rules(), facts.EntityID(zone), property)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ex)
		},
	}
	cmd.Flags().StringVar(&zone, "zone", "", "zone entity id")
	cmd.Flags().StringVar(&property, "property", "", "risk level, e.g. HighRisk")
	cmd.Flags().StringVar(&reading, "reading", "", "evaluate this reading first")
	_ = cmd.MarkFlagRequired("zone")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}

func newGraphCmd(opts *options) *cobra.Command {
	var reading string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the visualization graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, r, err := opts.view(cmd, reading)
			if err != nil {
				return err
			}
			g, err := projection.Project(cat, r, opts.maxIndividuals)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), g)
		},
	}
	cmd.Flags().StringVar(&reading, "reading", "", "evaluate this reading first")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var reading string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print schema and store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, r, err := opts.view(cmd, reading)
			if err != nil {
				return err
			}
			st, err := projection.Stats(cat, r)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&reading, "reading", "", "evaluate this reading first")
	return cmd
}

func newRulesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rule corpus in precedence order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := schema.Load(opts.schemaPath, opts.rulesPath)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cat.Rules())
		},
	}
}

// --- helpers ---

type staticCatalog struct{ c *schema.Catalog }

func (s staticCatalog) Catalog() *schema.Catalog { return s.c }

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *options) evaluate(cmd *cobra.Command, path string) (*pipeline.Assessment, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	reading, err := domain.ParseReading(data)
	if err != nil {
		return nil, err
	}
	cat, err := schema.Load(o.schemaPath, o.rulesPath)
	if err != nil {
		return nil, err
	}
	e := pipeline.NewEvaluator(staticCatalog{cat}, o.maxPasses, o.maxIndividuals, clockwork.NewRealClock(),
		o.logger(cmd), observability.NewMetricsWith(prometheus.NewRegistry()))
	return e.Evaluate(cmd.Context(), reading)
}

// view returns the store to inspect: the evaluated snapshot when a reading
// is given, the closed baseline otherwise.
func (o *options) view(cmd *cobra.Command, readingPath string) (*schema.Catalog, facts.Reader, error) {
	if readingPath != "" {
		a, err := o.evaluate(cmd, readingPath)
		if err != nil {
			return nil, nil, err
		}
		return a.Catalog(), a.Facts(), nil
	}
	cat, err := schema.Load(o.schemaPath, o.rulesPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := pipeline.Baseline(cat, o.maxPasses)
	if err != nil {
		return nil, nil, err
	}
	return cat, s, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reading: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
