package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/verdantlabs/verdant/internal/account"
	"github.com/verdantlabs/verdant/internal/balance"
	"github.com/verdantlabs/verdant/internal/clock"
	"github.com/verdantlabs/verdant/internal/config"
	"github.com/verdantlabs/verdant/internal/ledger"
	"github.com/verdantlabs/verdant/internal/migration"
	"github.com/verdantlabs/verdant/internal/observability"
	"github.com/verdantlabs/verdant/internal/ratelimit"
	"github.com/verdantlabs/verdant/internal/server"
	"github.com/verdantlabs/verdant/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		account.Module,
		balance.Module,
		ledger.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
