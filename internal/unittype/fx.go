package unittype

import (
	"github.com/smallbiznis/estatebook/internal/unittype/repository"
	"github.com/smallbiznis/estatebook/internal/unittype/service"
	"go.uber.org/fx"
)

var Module = fx.Module("unittype.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
