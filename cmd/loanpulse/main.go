package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwillis/loanpulse/internal/box"
	"github.com/mwillis/loanpulse/internal/config"
	"github.com/mwillis/loanpulse/internal/history"
	"github.com/mwillis/loanpulse/internal/pipeline"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "loanpulse",
	Short:   "Loan pipeline KPI reports from a Box spreadsheet",
	Long:    "loanpulse downloads the loan pipeline spreadsheet from Box, computes status KPIs, and publishes a JSON summary for the dashboard.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("loanpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/loanpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set column names and focus statuses; supply Box identifiers via env vars.")
		return nil
	},
}

// --- report command ---

var (
	inputPath  string
	outputPath string
	noDetails  bool
	noHistory  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the KPI report: fetch -> parse -> aggregate -> publish",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputPath != "" {
			cfg.Output.JSONPath = outputPath
		}
		if noDetails {
			off := false
			cfg.Report.IncludeDetails = &off
		}

		var db *history.DB
		if !noHistory {
			var err error
			db, err = openDB()
			if err != nil {
				return err
			}
			defer db.Close()
		}

		pipe := pipeline.New(cfg, db)
		result := pipe.Run(context.Background(), inputPath)

		for i, step := range result.Steps {
			fmt.Printf("Step %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if err := result.Failed(); err != nil {
			return err
		}

		fmt.Printf("\nWrote %s (rows: %d)\n", result.OutputPath, result.RowCount)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&inputPath, "input", "", "Read the workbook from a local file instead of Box")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Override the JSON output path")
	reportCmd.Flags().BoolVar(&noDetails, "no-details", false, "Publish counts only, without detail rows")
	reportCmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording the run in the history database")
}

// --- whoami command ---

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Authenticate to Box and print the acting user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateRemote(); err != nil {
			return err
		}
		creds, err := config.ParseBoxCredentials(cfg.Box.ConfigJSON)
		if err != nil {
			return err
		}

		client := box.NewClient(creds, cfg.Box.UserID)
		user, err := client.CurrentUser(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Authenticated as: id=%s name=%s login=%s\n", user.ID, user.Name, user.Login)
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run-history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Run history:")
		fmt.Printf("  Total runs: %d\n", stats.TotalRuns)
		if stats.TotalRuns > 0 {
			fmt.Printf("  First run:  %s\n", stats.FirstRun)
			fmt.Printf("  Last run:   %s\n", stats.LastRun)
			fmt.Printf("  Officers:   %d\n", stats.OfficersSeen)
		}
		return nil
	},
}

// --- history command ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent report runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.GetRecentRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded. Generate one with: loanpulse report")
			return nil
		}

		for _, r := range runs {
			line := fmt.Sprintf("%s  rows=%d", r.GeneratedAt, r.RowCount)
			if r.ClosedThisYear != nil {
				line += fmt.Sprintf("  closed_this_year=%d", *r.ClosedThisYear)
			}
			if r.Officer != nil && *r.Officer != "" {
				line += "  officer=" + *r.Officer
			}
			if !strings.EqualFold(r.Source, "box") {
				line += "  source=" + r.Source
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

func openDB() (*history.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return history.Open(filepath.Join(dataDir, "loanpulse.db"))
}
