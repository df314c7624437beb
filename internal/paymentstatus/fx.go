package paymentstatus

import (
	"github.com/smallbiznis/estatebook/internal/paymentstatus/repository"
	"github.com/smallbiznis/estatebook/internal/paymentstatus/service"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentstatus.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.AsRefresher),
	fx.Provide(service.New),
)
