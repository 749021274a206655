package ledger

import (
	"github.com/verdantlabs/verdant/internal/ledger/repository"
	"github.com/verdantlabs/verdant/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
