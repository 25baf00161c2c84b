package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leadfinch/contact-crawler/internal/app"
	"github.com/leadfinch/contact-crawler/internal/contact"
	"github.com/leadfinch/contact-crawler/internal/report"
)

type extractOptions struct {
	input       string
	outDir      string
	concurrency int
	noRetry     bool
	asJSON      bool
}

// newExtractCmd creates the 'extract' subcommand: a one-shot run of the
// same pipeline the server exposes, with the report written locally.
func newExtractCmd() *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [urls...]",
		Short: "Extracts contacts from the given sites and writes a CSV report",
		Long: `Runs the contact extraction pipeline once over the URLs given as
arguments and/or read from the first column of a CSV file, then prints
the per-site results and the path of the generated report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "CSV file whose first column lists URLs")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "directory for the report artifact (defaults to storage.base_dir)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "worker pool size (defaults to scraper.concurrency)")
	cmd.Flags().BoolVar(&opts.noRetry, "no-retry", false, "skip the retry pass over failed sites")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "emit results as JSON instead of a table")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string, opts *extractOptions) error {
	urls, err := gatherURLs(args, opts.input)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// One-shot runs stay self-contained: local artifact, no job rows,
	// no completion events, whatever the server deployment uses.
	cfg.Storage.Provider = "local"
	cfg.Storage.Prefix = ""
	if opts.outDir != "" {
		cfg.Storage.BaseDir = opts.outDir
	}
	cfg.Jobs.Provider = "memory"
	cfg.Publisher.Provider = "noop"
	if opts.concurrency > 0 {
		cfg.Scraper.Concurrency = opts.concurrency
	}
	if opts.noRetry {
		cfg.Scraper.RetryFailed = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	services, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer services.Close()

	rep, err := services.Orchestrator.Run(cmd.Context(), "", urls)
	if err != nil {
		return fmt.Errorf("run extraction: %w", err)
	}

	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	renderReport(cmd, rep)
	return nil
}

// gatherURLs merges positional URLs with the --input file, keeping the
// file's order after the arguments'.
func gatherURLs(args []string, input string) ([]string, error) {
	urls := make([]string, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		fromFile, err := report.ReadURLColumn(f)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs given: pass them as arguments or via --input")
	}
	return urls, nil
}

func renderReport(cmd *cobra.Command, rep contact.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"URL", "Contact Page", "Emails", "Phones", "Error"})
	for _, row := range rep.Rows {
		t.AppendRow(table.Row{
			row.URL,
			row.ContactPage,
			strings.Join(row.Emails, ", "),
			strings.Join(row.Phones, ", "),
			row.Error,
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d sites", len(rep.Rows)),
		"",
		"",
		fmt.Sprintf("%d retried", rep.Retried),
		fmt.Sprintf("%d failed", rep.Failed()),
	})
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", rep.URI)
}
