package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	accountdomain "github.com/verdantlabs/verdant/internal/account/domain"
	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
	"github.com/verdantlabs/verdant/internal/config"
	ledgerdomain "github.com/verdantlabs/verdant/internal/ledger/domain"
	"github.com/verdantlabs/verdant/internal/ratelimit"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		// mysql and sqlite deployments derive the schema from the models.
		return AutoMigrate(conn)
	}),
)

// AutoMigrate creates the schema from the gorm models. Used for non-postgres
// databases and in-memory test databases.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&accountdomain.User{},
		&balancedomain.Balance{},
		&balancedomain.TokenAccount{},
		&ledgerdomain.Attempt{},
		&ratelimit.Event{},
	)
}
