package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/estatebook/internal/app"
	paymentstatusdomain "github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"github.com/smallbiznis/estatebook/internal/providers"
	"github.com/smallbiznis/estatebook/internal/providers/pdf"
	"github.com/smallbiznis/estatebook/internal/providers/xlsx"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func ExportCmd(flags *globalFlags) *cobra.Command {
	var (
		projectID string
		asOf      string
		format    string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the payment status rollup as pdf or xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			if format != "pdf" && format != "xlsx" {
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

			var (
				svc        paymentstatusdomain.Service
				pdfRender  pdf.Provider
				xlsxRender xlsx.Provider
			)
			targets := []interface{}{&svc, &pdfRender, &xlsxRender}
			return withApp(ctx, []fx.Option{app.Domains, providers.Module}, targets, func(ctx context.Context) error {
				report, err := svc.Aggregate(ctx, projectID, date)
				if err != nil {
					return err
				}

				var body io.Reader
				if format == "pdf" {
					body, err = pdfRender.RenderPaymentStatus(ctx, report)
					if errors.Is(err, pdf.ErrFontUnavailable) {
						return fmt.Errorf("%w: set PDF_FONT_PATH to a Hangul TrueType font", err)
					}
				} else {
					body, err = xlsxRender.RenderPaymentStatus(ctx, report)
				}
				if err != nil {
					return err
				}

				path := out
				if path == "" {
					path = ExportFilename(report, format)
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()

				n, err := io.Copy(f, body)
				if err != nil {
					return err
				}
				cmd.Printf("wrote %s (%d bytes)\n", path, n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "pdf or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, defaults to payment-status-<project>-<date>.<format>")
	return cmd
}

// ExportFilename matches the attachment name the HTTP export uses.
func ExportFilename(report *paymentstatusdomain.Report, format string) string {
	return fmt.Sprintf("payment-status-%s-%s.%s", slug.Make(report.ProjectName), report.AsOf.Format("2006-01-02"), format)
}
