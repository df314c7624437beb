// Package cli implements estatectl, the operator tool for migrations,
// cache recalculation and payment status reports.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/smallbiznis/estatebook/internal/app"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	obscontext "github.com/smallbiznis/estatebook/internal/observability/context"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

type globalFlags struct {
	orgID string
	actor string
}

// Root builds the estatectl command tree.
func Root() *cobra.Command {
	_ = godotenv.Load()

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "estatectl",
		Short:         "Operate the estatebook back office",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.orgID, "org", "", "organization id")
	root.PersistentFlags().StringVar(&flags.actor, "actor", "estatectl", "actor recorded in the audit log")

	root.AddCommand(
		MigrateCmd(),
		RecalcCmd(flags),
		StatusCmd(flags),
		ExportCmd(flags),
	)
	return root
}

// withApp starts a headless fx graph, hands fn the populated targets and
// stops the graph afterwards.
func withApp(ctx context.Context, opts []fx.Option, targets []interface{}, fn func(context.Context) error) error {
	options := append([]fx.Option{app.Core, fx.NopLogger}, opts...)
	if len(targets) > 0 {
		options = append(options, fx.Populate(targets...))
	}
	application := fx.New(options...)
	if err := application.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
		defer stopCancel()
		_ = application.Stop(stopCtx)
	}()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// scopedContext attaches the --org organization and the CLI actor.
func (f *globalFlags) scopedContext(ctx context.Context) (context.Context, error) {
	raw := strings.TrimSpace(f.orgID)
	if raw == "" {
		return nil, fmt.Errorf("--org is required")
	}
	orgID, err := snowflake.ParseString(raw)
	if err != nil || orgID == 0 {
		return nil, fmt.Errorf("invalid --org %q", raw)
	}
	ctx = orgcontext.WithOrgID(ctx, orgID)
	ctx = obscontext.WithOrgID(ctx, orgID.String())
	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeCLI), strings.TrimSpace(f.actor))
	ctx, _ = obscontext.EnsureCorrelationID(ctx)
	return ctx, nil
}

func parseDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", trimmed)
	}
	return &parsed, nil
}
