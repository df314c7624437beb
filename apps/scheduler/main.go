package main

import (
	"github.com/smallbiznis/estatebook/internal/app"
	"github.com/smallbiznis/estatebook/internal/lock"
	"github.com/smallbiznis/estatebook/internal/scheduler"
	"go.uber.org/fx"
)

// No HTTP server; replicas coordinate through the redis lease when
// REDIS_ADDR is set.
func main() {
	fx.New(
		app.Core,
		app.Domains,
		lock.Module,
		scheduler.Module,
	).Run()
}
