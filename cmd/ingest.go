// Package cmd defines and implements the CLI commands for the ingestor
// executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

// newIngestCmd creates the 'ingest' subcommand, which runs one pipeline in
// the foreground.
func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <url>",
		Short: "Crawl a website and prepare it for chat",
		Long: `Profiles the site, picks a fetch strategy, crawls every same-host
page reachable from the URL, stores the document and builds its retrieval
index. Prints the doc and session IDs and the final status.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngestCommand,
	}
}

func runIngestCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if _, _, err := crawler.ParseSeed(args[0]); err != nil {
		return err
	}
	job, err := appInstance.NewJob(args[0])
	if err != nil {
		return err
	}

	res := appInstance.Orchestrator.Run(cmd.Context(), job)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "doc_id:     %s\n", job.DocID)
	fmt.Fprintf(out, "session_id: %s\n", job.SessionID)
	fmt.Fprintf(out, "strategy:   %s\n", res.Strategy)
	fmt.Fprintf(out, "pages:      %d\n", res.Pages)
	fmt.Fprintf(out, "status:     %s\n", res.Status)
	if res.Err != nil {
		appInstance.Logger.Warn("ingestion failed", zap.Error(res.Err))
		return fmt.Errorf("ingest %s: %w", job.SeedURL, res.Err)
	}
	return nil
}
