// Package app groups the fx modules shared by every binary.
package app

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/audit"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/config"
	"github.com/smallbiznis/estatebook/internal/contract"
	"github.com/smallbiznis/estatebook/internal/contractprice"
	"github.com/smallbiznis/estatebook/internal/houseunit"
	"github.com/smallbiznis/estatebook/internal/installment"
	"github.com/smallbiznis/estatebook/internal/ledger"
	"github.com/smallbiznis/estatebook/internal/observability"
	"github.com/smallbiznis/estatebook/internal/ordergroup"
	"github.com/smallbiznis/estatebook/internal/paymentstatus"
	"github.com/smallbiznis/estatebook/internal/project"
	"github.com/smallbiznis/estatebook/internal/unittype"
	"github.com/smallbiznis/estatebook/pkg/db"
	"go.uber.org/fx"
)

// Core is the infrastructure every process needs: config, logging and
// telemetry, ids, the database and the clock.
var Core = fx.Options(
	config.Module,
	observability.Module,
	fx.Provide(RegisterSnowflake),
	db.Module,
	clock.Module,
)

// Domains wires the repositories and services of the back office.
var Domains = fx.Options(
	audit.Module,
	ledger.Module,
	project.Module,
	unittype.Module,
	installment.Module,
	houseunit.Module,
	ordergroup.Module,
	contractprice.Module,
	contract.Module,
	paymentstatus.Module,
)

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
