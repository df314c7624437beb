package main

import (
	"github.com/smallbiznis/estatebook/internal/app"
	"github.com/smallbiznis/estatebook/internal/lock"
	"github.com/smallbiznis/estatebook/internal/migration"
	"github.com/smallbiznis/estatebook/internal/scheduler"
	"github.com/smallbiznis/estatebook/internal/server"
	"go.uber.org/fx"
)

// estatebook runs the API, the recalculation scheduler and schema
// migrations in one process.
func main() {
	fx.New(
		app.Core,
		migration.Module,
		app.Domains,
		lock.Module,
		scheduler.Module,
		server.Module,
	).Run()
}
