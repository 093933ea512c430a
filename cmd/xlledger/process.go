package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/javajack/xlledger"
)

// Output is the JSON document printed by `process`.
type Output struct {
	Success     bool         `json:"success"`
	Output      string       `json:"output,omitempty"`
	Sheet       string       `json:"sheet,omitempty"`
	Rows        int          `json:"rows,omitempty"`
	Columns     []string     `json:"columns,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Error       string       `json:"error,omitempty"`
	Code        string       `json:"code,omitempty"`
	Duration    string       `json:"duration"`
}

// Diagnostic is the JSON form of a row diagnostic.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Cell     string `json:"cell"`
	Message  string `json:"message"`
}

func newProcessCmd() *cobra.Command {
	var (
		output       string
		sheet        string
		add          []string
		inspect      []string
		rule         string
		expression   string
		unclassified string
		blank        bool
		headerRow    int
		dataStart    int
		dataEnd      int
		region       string
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Run the full pipeline and write the result workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			out := cmd.OutOrStdout()
			fail := func(err error) error {
				emitJSON(out, Output{
					Error:    err.Error(),
					Code:     xlledger.ErrorCode(err),
					Duration: time.Since(start).String(),
				})
				return err
			}

			cfg, logger, err := setup()
			if err != nil {
				return fail(err)
			}
			if expression != "" {
				cfg.Classify.Rule = "expr"
				cfg.Classify.Expression = expression
			}
			if rule != "" {
				cfg.Classify.Rule = rule
			}
			if cmd.Flags().Changed("unclassified") {
				cfg.Classify.Unclassified = unclassified
			}
			if blank {
				cfg.Classify.BlankUnclassified = true
			}
			if err := cfg.Validate(); err != nil {
				return fail(err)
			}
			p, err := newProcessor(cfg, logger)
			if err != nil {
				return fail(err)
			}

			req := xlledger.Request{
				Path:    args[0],
				Sheet:   sheet,
				Add:     cfg.Columns.Add,
				Inspect: cfg.Columns.Inspect,
				Output:  output,
				Region:  region,
			}
			if cmd.Flags().Changed("add") {
				req.Add = splitList(add)
			}
			if cmd.Flags().Changed("inspect") {
				req.Inspect = splitList(inspect)
			}
			if headerRow > 0 {
				if dataEnd <= 0 {
					return fail(fmt.Errorf("--data-end is required with --header-row: %w", xlledger.ErrInvalidBounds))
				}
				if dataStart <= 0 {
					dataStart = headerRow + 1
				}
				req.Bounds = &xlledger.Bounds{HeaderRow: headerRow - 1, DataStart: dataStart - 1, DataEnd: dataEnd}
			}

			if dryRun {
				found, err := p.Validate(req)
				if err != nil {
					return fail(err)
				}
				emitJSON(out, Output{
					Success:     true,
					Diagnostics: newDiagnostics(found),
					Duration:    time.Since(start).String(),
				})
				return nil
			}

			res, err := p.Run(req)
			if err != nil {
				return fail(err)
			}
			emitJSON(out, Output{
				Success:     true,
				Output:      res.Output,
				Sheet:       res.Sheet,
				Rows:        res.Rows,
				Columns:     res.Columns,
				Diagnostics: newDiagnostics(res.Diagnostics),
				Duration:    time.Since(start).String(),
			})
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "Output .xlsx path (default: <input>_processed.xlsx)")
	f.StringVar(&sheet, "sheet", "", "Sheet to process instead of the PR sheet")
	f.StringSliceVar(&add, "add", nil, "Columns to append: LEDGER HEAD, TAXABLE VALUE, CGST, SGST, IGST")
	f.StringSliceVar(&inspect, "inspect", nil, "Columns LEDGER HEAD is derived from, in priority order")
	f.StringVar(&rule, "rule", "", "Classification rule: first-non-zero, join-all, largest, expr")
	f.StringVar(&expression, "expr", "", "Expression for the expr rule")
	f.StringVar(&unclassified, "unclassified", "", "Text written for rows without a non-zero amount")
	f.BoolVar(&blank, "blank-unclassified", false, "Leave unclassified rows blank")
	f.IntVar(&headerRow, "header-row", 0, "Confirmed 1-based header row, skipping detection")
	f.IntVar(&dataStart, "data-start", 0, "Confirmed first data row (default: header row + 1)")
	f.IntVar(&dataEnd, "data-end", 0, "Confirmed last data row")
	f.StringVar(&region, "region", "", "Confirmed table area, header row first, e.g. \"'Sales PR'!A4:F120\"")
	f.BoolVar(&dryRun, "dry-run", false, "Run every stage in memory and report diagnostics without writing")
	cmd.MarkFlagsMutuallyExclusive("region", "header-row")
	return cmd
}

func newDiagnostics(diags []xlledger.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(diags))
	for i, d := range diags {
		out[i] = Diagnostic{Severity: d.Severity.String(), Code: d.Code, Cell: d.Ref.String(), Message: d.Message}
	}
	return out
}

func emitJSON(w io.Writer, out Output) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(w, `{"success":false,"error":%q}`+"\n", err.Error())
	}
}
