package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
)

type Classification string

const (
	Contracted    Classification = "contracted"
	NonContracted Classification = "non_contracted"
)

// Classify decides whether a unit counts as sold at asOf: it needs a linked,
// active contract dated on or before that day.
func Classify(cp contractpricedomain.ContractPrice, contract *contractdomain.Contract, asOf time.Time) Classification {
	if !cp.IsContracted() || contract == nil || contract.ID != *cp.ContractID {
		return NonContracted
	}
	if !contract.SignedBy(asOf) {
		return NonContracted
	}
	return Contracted
}

// Snapshot is everything the aggregator reads for one project.
type Snapshot struct {
	Project     projectdomain.Project
	UnitTypes   []unittypedomain.UnitType
	Steps       []installmentdomain.InstallmentPaymentOrder
	Units       []houseunitdomain.HouseUnit
	Prices      []contractpricedomain.ContractPrice
	Contracts   []contractdomain.Contract
	OrderGroups []ordergroupdomain.OrderGroup
}

type RollupRow struct {
	OrderGroupID      *snowflake.ID `json:"order_group_id,omitempty"`
	OrderGroupName    string        `json:"order_group_name"`
	UnitTypeID        *snowflake.ID `json:"unit_type_id,omitempty"`
	UnitTypeName      string        `json:"unit_type_name"`
	ContractUnits     int           `json:"contract_units"`
	NonContractUnits  int           `json:"non_contract_units"`
	ContractAmount    int64         `json:"contract_amount"`
	NonContractAmount int64         `json:"non_contract_amount"`
	TotalSalesAmount  int64         `json:"total_sales_amount"`
	TotalBudget       int64         `json:"total_budget"`
}

// Balanced reports whether the row satisfies sales == contract + non-contract == budget.
func (r RollupRow) Balanced() bool {
	return r.TotalSalesAmount == r.ContractAmount+r.NonContractAmount && r.TotalSalesAmount == r.TotalBudget
}

func (r *RollupRow) Add(other RollupRow) {
	r.ContractUnits += other.ContractUnits
	r.NonContractUnits += other.NonContractUnits
	r.ContractAmount += other.ContractAmount
	r.NonContractAmount += other.NonContractAmount
	r.TotalSalesAmount += other.TotalSalesAmount
	r.TotalBudget += other.TotalBudget
}

type WarningKind string

const (
	WarningStaleCache          WarningKind = "stale_cache"
	WarningInvalidSchedule     WarningKind = "invalid_schedule"
	WarningMissingDefaultGroup WarningKind = "missing_default_group"
	WarningInvariantViolation  WarningKind = "invariant_violation"
	WarningRefreshFailed       WarningKind = "refresh_failed"
)

type Warning struct {
	Kind            WarningKind `json:"kind"`
	Message         string      `json:"message"`
	UnitTypeID      string      `json:"unit_type_id,omitempty"`
	ContractPriceID string      `json:"contract_price_id,omitempty"`
	OrderGroupName  string      `json:"order_group_name,omitempty"`
	Err             error       `json:"-"`
}

type SkippedUnitType struct {
	UnitTypeID   snowflake.ID `json:"unit_type_id"`
	UnitTypeName string       `json:"unit_type_name"`
	Reason       string       `json:"reason"`
}

type Report struct {
	ProjectID   snowflake.ID      `json:"project_id"`
	ProjectName string            `json:"project_name"`
	AsOf        time.Time         `json:"as_of"`
	GeneratedAt time.Time         `json:"generated_at"`
	RatioPolicy string            `json:"ratio_policy"`
	Rows        []RollupRow       `json:"rows"`
	Totals      RollupRow         `json:"totals"`
	Warnings    []Warning         `json:"warnings"`
	Skipped     []SkippedUnitType `json:"skipped"`
}

// WarningsOf filters warnings by kind.
func (r *Report) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

var ErrMissingDefaultGroup = errors.New("missing_default_group")

// MissingDefaultGroupError is non-fatal: uncontracted units fall into the unassigned bucket.
type MissingDefaultGroupError struct {
	ProjectID snowflake.ID
}

func (e *MissingDefaultGroupError) Error() string {
	return fmt.Sprintf("missing_default_group: project %s has no default order group for uncontracted units", e.ProjectID.String())
}

func (e *MissingDefaultGroupError) Unwrap() error {
	return ErrMissingDefaultGroup
}
