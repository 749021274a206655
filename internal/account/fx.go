package account

import (
	"github.com/verdantlabs/verdant/internal/account/repository"
	"github.com/verdantlabs/verdant/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
