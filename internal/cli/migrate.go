package cli

import (
	"github.com/smallbiznis/estatebook/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := withApp(cmd.Context(), []fx.Option{migration.Module}, nil, nil); err != nil {
				return err
			}
			cmd.Println("schema up to date")
			return nil
		},
	}
}
