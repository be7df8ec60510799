package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobranca/internal/agent"
	"github.com/smallbiznis/cobranca/internal/agentconfig"
	"github.com/smallbiznis/cobranca/internal/charge"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/config"
	"github.com/smallbiznis/cobranca/internal/conversation"
	"github.com/smallbiznis/cobranca/internal/customer"
	"github.com/smallbiznis/cobranca/internal/decisionlog"
	"github.com/smallbiznis/cobranca/internal/dispatch"
	"github.com/smallbiznis/cobranca/internal/dunning"
	"github.com/smallbiznis/cobranca/internal/lock"
	"github.com/smallbiznis/cobranca/internal/logger"
	"github.com/smallbiznis/cobranca/internal/messagequeue"
	"github.com/smallbiznis/cobranca/internal/migration"
	"github.com/smallbiznis/cobranca/internal/observability"
	"github.com/smallbiznis/cobranca/internal/scheduler"
	"github.com/smallbiznis/cobranca/internal/task"
	"github.com/smallbiznis/cobranca/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		customer.Module,
		charge.Module,
		dunning.Module,
		conversation.Module,
		messagequeue.Module,
		task.Module,
		decisionlog.Module,
		agentconfig.Module,

		agent.Module,
		dispatch.Module,
		scheduler.Module,
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
