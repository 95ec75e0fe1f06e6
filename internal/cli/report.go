package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/legalscan/internal/pipeline"
	"github.com/ppiankov/legalscan/internal/store"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Browse the report history",
	Long: `Browse reports recorded by analyze, batch and serve.

Example:
  legalscan report list --limit 50
  legalscan report show 7d0c... --format markdown
  legalscan report delete 7d0c...`,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.Store.HistoryLimit
		}

		reports, err := openReports(cfg)
		if err != nil {
			return err
		}
		defer closeReports(reports)

		list, err := reports.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No reports recorded yet")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-36s  %-20s  %-6s  %-7s  %-5s  %s\n", "ID", "CREATED", "LEVEL", "FORGERY", "SCAM", "FILE")
		for _, r := range list {
			fmt.Fprintf(out, "%-36s  %-20s  %-6s  %7.2f  %5.2f  %s\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.RiskLevel,
				r.RiskScores.ForgeryRisk, r.RiskScores.ScamRisk, r.Filename)
		}
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one report (json, markdown or html)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		reports, err := openReports(cfg)
		if err != nil {
			return err
		}
		defer closeReports(reports)

		report, err := reports.Get(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no report with id %s", args[0])
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "markdown", "md":
			_, err = fmt.Fprint(out, renderer.Markdown(report))
		case "html":
			_, err = out.Write(renderer.HTML(report))
		default:
			return fmt.Errorf("unknown format: %s (supported: json, markdown, html)", format)
		}
		return err
	},
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		reports, err := openReports(cfg)
		if err != nil {
			return err
		}
		defer closeReports(reports)

		if err := reports.Delete(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no report with id %s", args[0])
			}
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Deleted report %s\n", args[0])
		return nil
	},
}

func closeReports(reports store.ReportStore) {
	if err := reports.Close(); err != nil {
		slog.Warn("failed to close report store", slog.Any("error", err))
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd, reportShowCmd, reportDeleteCmd)

	reportListCmd.Flags().Int("limit", 0, "number of reports to list (default: store.history_limit)")
	reportShowCmd.Flags().String("format", "json", "output format (json, markdown, html)")
}
