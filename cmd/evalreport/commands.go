package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"evalreport/internal/app"
	"evalreport/internal/auth"
	"evalreport/internal/config"
	"evalreport/internal/evaluation"
	"evalreport/internal/exporter"
	"evalreport/internal/infrastructure"
	"evalreport/internal/services"
	"evalreport/internal/validation"
)

// Export formats
const (
	formatWorkbook   = "xlsx"
	formatEvaluators = "evaluators"
	formatHourly     = "hourly"
	formatStores     = "stores"
)

// cliLogger keeps stdout free for command output.
func cliLogger(w io.Writer) *slog.Logger {
	return infrastructure.NewWriterLogger(w, slog.LevelWarn)
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch the spreadsheet and print its tabs and header row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.NewApplication(opts.configPath, app.WithLogger(cliLogger(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}

			result, err := application.ReportService.Check(infrastructure.EnsureTraceID(cmd.Context()))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

type exportOptions struct {
	format   string
	out      string
	dateFrom string
	dateTo   string
	region   string
	stores   []string
	sectors  []string
	hourFrom int
	hourTo   int
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	eo := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a report download to a file",
		Long: `Write one of the report downloads with admin visibility.

Formats:
  xlsx        one sheet per store plus the evaluator ranking
  evaluators  evaluator ranking CSV
  hourly      hourly volume by store CSV
  stores      score means per store CSV

Example: evalreport export --format xlsx --from 2024-03-01 --to 2024-03-31 --out march.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := eo.criteria()
			if err != nil {
				return err
			}

			application, err := app.NewApplication(opts.configPath, app.WithLogger(cliLogger(cmd.ErrOrStderr())))
			if err != nil {
				return err
			}

			ctx := infrastructure.EnsureTraceID(cmd.Context())
			return runExport(ctx, application.ReportService, eo, criteria, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&eo.format, "format", "f", formatWorkbook, "Export format: xlsx, evaluators, hourly or stores")
	cmd.Flags().StringVarP(&eo.out, "out", "o", "", "Output file (default: the download file name)")
	cmd.Flags().StringVar(&eo.dateFrom, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&eo.dateTo, "to", "", "Last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&eo.region, "region", "", "Region filter")
	cmd.Flags().StringSliceVar(&eo.stores, "store", nil, "Store filter, repeatable")
	cmd.Flags().StringSliceVar(&eo.sectors, "sector", nil, "Sector filter, repeatable")
	cmd.Flags().IntVar(&eo.hourFrom, "hour-from", evaluation.MinHour, "First hour of the day")
	cmd.Flags().IntVar(&eo.hourTo, "hour-to", evaluation.MaxHour, "Last hour of the day")

	return cmd
}

func (eo *exportOptions) criteria() (evaluation.FilterCriteria, error) {
	c := evaluation.FilterCriteria{
		Region:  eo.region,
		Stores:  eo.stores,
		Sectors: eo.sectors,
		Hours:   &evaluation.HourRange{From: eo.hourFrom, To: eo.hourTo},
	}
	for _, d := range []struct {
		flag  string
		value string
		dst   **time.Time
	}{
		{"from", eo.dateFrom, &c.DateFrom},
		{"to", eo.dateTo, &c.DateTo},
	} {
		if d.value == "" {
			continue
		}
		t, err := time.Parse(evaluation.DayLayout, d.value)
		if err != nil {
			return c, fmt.Errorf("--%s must be a date in YYYY-MM-DD form, got %q", d.flag, d.value)
		}
		*d.dst = &t
	}
	return c, c.Validate()
}

type exportService interface {
	ExportWorkbook(ctx context.Context, req services.ReportRequest, w io.Writer) error
	ExportEvaluatorRanking(ctx context.Context, req services.ReportRequest, w io.Writer) error
	ExportHourlyVolume(ctx context.Context, req services.ReportRequest, w io.Writer) error
	ExportStoreSummary(ctx context.Context, req services.ReportRequest, w io.Writer) error
}

func runExport(ctx context.Context, svc exportService, eo *exportOptions, criteria evaluation.FilterCriteria, stdout io.Writer) error {
	var (
		fn   func(context.Context, services.ReportRequest, io.Writer) error
		name string
	)
	switch eo.format {
	case formatWorkbook:
		fn, name = svc.ExportWorkbook, exporter.WorkbookFileName
	case formatEvaluators:
		fn, name = svc.ExportEvaluatorRanking, exporter.EvaluatorRankingName
	case formatHourly:
		fn, name = svc.ExportHourlyVolume, exporter.HourlyVolumeName
	case formatStores:
		fn, name = svc.ExportStoreSummary, exporter.StoreSummaryName
	default:
		return fmt.Errorf("unknown export format %q (use xlsx, evaluators, hourly or stores)", eo.format)
	}

	out := eo.out
	if out == "" {
		out = name
	}
	if err := validation.NewFileValidator(nil).ValidateOutputFile(out); err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}

	req := services.ReportRequest{
		Access:   &auth.Session{Username: "cli", Name: "Command line", Role: config.RoleAdmin},
		Criteria: criteria,
	}
	w := bufio.NewWriter(f)
	if err := fn(ctx, req, w); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Fprintf(stdout, "wrote %s\n", out)
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for the users section of the config",
		Long: `Print a bcrypt hash for the users section of the config.

The password is read from the first argument, or from the first line of
standard input when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", config.MinPasswordCost, "bcrypt cost")

	return cmd
}
