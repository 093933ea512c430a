// Package main provides the xlledger command line.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javajack/xlledger"
	"github.com/javajack/xlledger/internal/config"
	"github.com/javajack/xlledger/internal/logging"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xlledger",
		Short: "Trim purchase register sheets and derive LEDGER HEAD",
		Long: `xlledger loads an Excel workbook, picks the purchase register (PR) sheet,
strips title and total rows, appends ledger columns and fills LEDGER HEAD from the
tax columns that carry an amount.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(newSheetsCmd(), newPreviewCmd(), newProcessCmd(), newServeCmd())
	return rootCmd
}

// setup loads the configuration and builds the logger. Logs go to stderr so stdout
// stays machine-readable.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, logging.New(cfg.Logging, os.Stderr), nil
}

func newProcessor(cfg *config.Config, logger *slog.Logger, extra ...xlledger.Option) (*xlledger.Processor, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, xlledger.WithLogger(logger))
	return xlledger.NewProcessor(append(opts, extra...)...), nil
}

func newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets FILE",
		Short: "List the sheets of a workbook and mark PR sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			p, err := newProcessor(cfg, logger)
			if err != nil {
				return err
			}
			infos, err := p.Sheets(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range infos {
				mark := " "
				if s.Matches {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s (%d rows)\n", mark, s.Name, s.Rows)
			}
			return nil
		},
	}
}

func newPreviewCmd() *cobra.Command {
	var (
		sheet string
		rows  int
	)
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Show the detected table region and its first rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			p, err := newProcessor(cfg, logger)
			if err != nil {
				return err
			}
			var s *xlledger.Session
			if sheet != "" {
				s, err = p.LoadSheet(args[0], sheet)
			} else {
				s, err = p.Load(args[0])
			}
			if err != nil {
				return err
			}
			if rows <= 0 {
				rows = cfg.PreviewRows
			}
			fmt.Fprint(cmd.OutOrStdout(), xlledger.Describe(s, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to load instead of the PR sheet")
	cmd.Flags().IntVar(&rows, "rows", 0, "Number of preview rows (default from config)")
	return cmd
}

// splitList accepts repeated flags as well as comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
