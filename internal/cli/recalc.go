package cli

import (
	"context"
	"fmt"

	"github.com/smallbiznis/estatebook/internal/app"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func RecalcCmd(flags *globalFlags) *cobra.Command {
	var (
		projectID string
		unitID    string
		staleOnly bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute cached payment allocations",
		Long: "Recompute cached payment allocations for one unit (--unit), one project (--project) " +
			"or every stale row of the organization (--stale).",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := flags.scopedContext(cmd.Context())
			if err != nil {
				return err
			}

			var svc contractpricedomain.Service
			return withApp(ctx, []fx.Option{app.Domains}, []interface{}{&svc}, func(ctx context.Context) error {
				switch {
				case unitID != "":
					cp, err := svc.RecalculateUnit(ctx, unitID)
					if err != nil {
						return err
					}
					cmd.Printf("unit %s: %d steps, valid=%t\n", unitID, len(cp.PaymentAmounts), cp.IsCacheValid)
					return nil
				case projectID != "":
					result, err := svc.RecalculateProject(ctx, projectID)
					if err != nil {
						return err
					}
					printResult(cmd, result)
					return result.Err()
				case staleOnly:
					orgID, _ := orgcontext.Require(ctx)
					result, err := svc.RecalculateStale(ctx, contractpricedomain.StaleFilter{OrgID: orgID, Limit: limit})
					if err != nil {
						return err
					}
					printResult(cmd, result)
					return result.Err()
				default:
					return fmt.Errorf("one of --unit, --project or --stale is required")
				}
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&unitID, "unit", "", "house unit id")
	cmd.Flags().BoolVar(&staleOnly, "stale", false, "only rows marked stale")
	cmd.Flags().IntVar(&limit, "limit", 500, "max stale rows to process")
	return cmd
}

func printResult(cmd *cobra.Command, result *contractpricedomain.RecalcResult) {
	cmd.Printf("processed=%d failed=%d\n", result.Processed, result.Failed)
	for i, id := range result.FailedIDs {
		if i < len(result.Errors) {
			cmd.Printf("  %s: %v\n", id, result.Errors[i])
		}
	}
}
