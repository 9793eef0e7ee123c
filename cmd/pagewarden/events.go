package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/pagewarden/internal/adapters/output"
	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/sink"
	"github.com/xoelrdgz/pagewarden/pkg/sanitize"
)

var (
	queryOrigin   string
	queryCategory string
	querySeverity string
	queryLimit    int
	queryJSON     bool
	querySummary  bool
	exportOut     string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List stored detection events",
	Long: `List detection events from the event store, most recent first.

Examples:
  pagewarden query --category XSS --severity warning
  pagewarden query --origin https://shop.example --limit 20 --json
  pagewarden query --summary`,
	RunE: runQuery,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored events as a JSON report",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored events with a JSON report",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	queryCmd.Flags().StringVar(&queryOrigin, "origin", "", "only events from this origin")
	queryCmd.Flags().StringVar(&queryCategory, "category", "", "only events of this category")
	queryCmd.Flags().StringVar(&querySeverity, "severity", "", "minimum severity (info, warning, critical)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum number of events (0 for all)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print events as JSON")
	queryCmd.Flags().BoolVar(&querySummary, "summary", false, "print per-origin category counts")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", sink.DefaultExportName, "output file, - for stdout")
}

// openEventLog loads the event store into a log of the configured capacity.
// The returned func closes the store.
func openEventLog() (*sink.EventLog, func(), error) {
	path := viper.GetString("events.store_path")
	if path == "" {
		return nil, nil, fmt.Errorf("no event store configured (events.store_path)")
	}
	store, err := output.NewBoltStore(path)
	if err != nil {
		return nil, nil, err
	}
	events := sink.New(sink.Config{MaxEvents: viper.GetInt("events.max"), Store: store})
	if err := events.Load(); err != nil {
		store.Close()
		return nil, nil, err
	}
	return events, func() { store.Close() }, nil
}

func parseQueryFilter() (sink.Filter, error) {
	f := sink.Filter{Origin: queryOrigin, Limit: queryLimit}
	if queryCategory != "" {
		category, err := domain.ParseCategory(queryCategory)
		if err != nil {
			return f, err
		}
		f.Category = category
	}
	if querySeverity != "" {
		severity, err := domain.ParseSeverity(querySeverity)
		if err != nil {
			return f, err
		}
		f.MinSeverity = &severity
	}
	return f, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	filter, err := parseQueryFilter()
	if err != nil {
		return err
	}
	events, closeStore, err := openEventLog()
	if err != nil {
		return err
	}
	defer closeStore()

	out := cmd.OutOrStdout()
	if querySummary {
		return printSummary(out, events.Summary())
	}

	results := events.Query(filter)
	if queryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, e := range results {
		fmt.Fprintf(out, "%s  %-8s  %-25s  %-7s  %s\n",
			e.Timestamp().Format(time.DateTime),
			strings.ToUpper(e.Severity.String()),
			e.Category,
			e.RuleID,
			sanitize.String(e.Type+"  "+e.URL, 120))
	}
	fmt.Fprintf(out, "%d of %d events\n", len(results), events.Len())
	return nil
}

func printSummary(out io.Writer, summary []sink.OriginSummary) error {
	for _, s := range summary {
		fmt.Fprintf(out, "%s  total=%d critical=%d last=%s\n",
			sanitize.Origin(s.Origin), s.Total, s.Critical,
			time.UnixMilli(s.LastSeen).Format(time.DateTime))
		for _, c := range domain.AllCategories {
			if n := s.Counts[c]; n > 0 {
				fmt.Fprintf(out, "    %-25s %d\n", c, n)
			}
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	events, closeStore, err := openEventLog()
	if err != nil {
		return err
	}
	defer closeStore()

	if exportOut == "-" {
		return events.Export(cmd.OutOrStdout())
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()
	if err := events.Export(f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d events to %s\n", events.Len(), exportOut)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	events, closeStore, err := openEventLog()
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := events.Import(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d events\n", n)
	return nil
}
