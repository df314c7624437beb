package ordergroup

import (
	"github.com/smallbiznis/estatebook/internal/ordergroup/repository"
	"github.com/smallbiznis/estatebook/internal/ordergroup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ordergroup.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
