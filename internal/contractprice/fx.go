package contractprice

import (
	"github.com/smallbiznis/estatebook/internal/contractprice/repository"
	"github.com/smallbiznis/estatebook/internal/contractprice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contractprice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.AsInvalidator),
	fx.Provide(service.AsRecalculator),
)
