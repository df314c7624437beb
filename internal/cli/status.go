package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/smallbiznis/estatebook/internal/app"
	paymentstatusdomain "github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func StatusCmd(flags *globalFlags) *cobra.Command {
	var (
		projectID string
		asOf      string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the payment status rollup of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			if format != formatTable && format != formatJSON {
				return fmt.Errorf("unsupported --format %q", format)
			}
			date, err := parseDate(asOf)
			if err != nil {
				return err
			}
			ctx, err := flags.scopedContext(cmd.Context())
			if err != nil {
				return err
			}

			var svc paymentstatusdomain.Service
			return withApp(ctx, []fx.Option{app.Domains}, []interface{}{&svc}, func(ctx context.Context) error {
				report, err := svc.Aggregate(ctx, projectID, date)
				if err != nil {
					return err
				}
				if format == formatJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				return RenderTable(cmd.OutOrStdout(), report)
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table or json")
	return cmd
}

// RenderTable writes the rollup as an aligned plain-text table followed by
// the report warnings.
func RenderTable(w io.Writer, report *paymentstatusdomain.Report) error {
	fmt.Fprintf(w, "%s  as of %s\n\n", report.ProjectName, report.AsOf.Format("2006-01-02"))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "GROUP\tTYPE\tSOLD\tUNSOLD\tCONTRACT\tNON-CONTRACT\tSALES\tBUDGET\t")
	for _, row := range report.Rows {
		writeRow(tw, row)
	}
	writeRow(tw, report.Totals)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintln(w)
		for _, skipped := range report.Skipped {
			fmt.Fprintf(w, "skipped %s: %s\n", skipped.UnitTypeName, skipped.Reason)
		}
	}
	if len(report.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "warning [%s] %s\n", warning.Kind, strings.TrimSpace(warning.Message))
		}
	}
	return nil
}

func writeRow(w io.Writer, row paymentstatusdomain.RollupRow) {
	fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t\n",
		row.OrderGroupName,
		row.UnitTypeName,
		row.ContractUnits,
		row.NonContractUnits,
		humanize.Comma(row.ContractAmount),
		humanize.Comma(row.NonContractAmount),
		humanize.Comma(row.TotalSalesAmount),
		humanize.Comma(row.TotalBudget),
	)
}
