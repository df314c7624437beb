package main

import (
	"github.com/smallbiznis/estatebook/internal/app"
	"github.com/smallbiznis/estatebook/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Core,
		app.Domains,
		server.Module,
	).Run()
}
