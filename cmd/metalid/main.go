package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/metalid/internal/audit"
	"github.com/smallbiznis/metalid/internal/authorization"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/config"
	"github.com/smallbiznis/metalid/internal/identity"
	"github.com/smallbiznis/metalid/internal/invite"
	"github.com/smallbiznis/metalid/internal/legacy"
	"github.com/smallbiznis/metalid/internal/member"
	"github.com/smallbiznis/metalid/internal/migration"
	"github.com/smallbiznis/metalid/internal/observability"
	"github.com/smallbiznis/metalid/internal/profile"
	"github.com/smallbiznis/metalid/internal/providers"
	"github.com/smallbiznis/metalid/internal/provisioning"
	"github.com/smallbiznis/metalid/internal/ratelimit"
	"github.com/smallbiznis/metalid/internal/registration"
	"github.com/smallbiznis/metalid/internal/server"
	"github.com/smallbiznis/metalid/internal/session"
	"github.com/smallbiznis/metalid/internal/statspush"
	"github.com/smallbiznis/metalid/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,

		// Domains
		audit.Module,
		member.Module,
		invite.Module,
		provisioning.Module,
		identity.Module,
		registration.Module,
		profile.Module,
		authorization.Module,
		session.Module,
		legacy.Module,
		providers.Module,
		ratelimit.Module,
		statspush.Module,

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
