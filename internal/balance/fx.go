package balance

import (
	"github.com/verdantlabs/verdant/internal/balance/repository"
	"github.com/verdantlabs/verdant/internal/balance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("balance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
