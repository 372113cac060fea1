package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/apikey"
	"github.com/costscopehq/costscope/internal/audit"
	"github.com/costscopehq/costscope/internal/auth"
	"github.com/costscopehq/costscope/internal/auth/session"
	"github.com/costscopehq/costscope/internal/authorization"
	"github.com/costscopehq/costscope/internal/billingsync"
	"github.com/costscopehq/costscope/internal/cloudmetrics"
	"github.com/costscopehq/costscope/internal/config"
	"github.com/costscopehq/costscope/internal/hierarchy"
	"github.com/costscopehq/costscope/internal/migration"
	"github.com/costscopehq/costscope/internal/observability"
	"github.com/costscopehq/costscope/internal/organization"
	"github.com/costscopehq/costscope/internal/providers"
	"github.com/costscopehq/costscope/internal/ratelimit"
	"github.com/costscopehq/costscope/internal/reference"
	"github.com/costscopehq/costscope/internal/server"
	"github.com/costscopehq/costscope/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		migration.Module,

		reference.Module,
		auth.Module,
		session.Module,
		authorization.Module,
		audit.Module,
		organization.Module,
		apikey.Module,
		billingsync.Module,
		hierarchy.Module,
		ratelimit.Module,
		cloudmetrics.Module,
		providers.Module,

		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
