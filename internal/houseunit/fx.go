package houseunit

import (
	"github.com/smallbiznis/estatebook/internal/houseunit/repository"
	"github.com/smallbiznis/estatebook/internal/houseunit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("houseunit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
