package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/allocation"
	"github.com/smallbiznis/estatebook/internal/config"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	"github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
)

const totalsLabel = "합계"

// typeSchedule is the resolved schedule of one unit type and whether it may be used.
type typeSchedule struct {
	unitType *unittypedomain.UnitType
	steps    []allocation.Step
	skipped  bool
}

type rowKey struct {
	groupID    snowflake.ID
	unitTypeID snowflake.ID
}

type rowState struct {
	row       domain.RollupRow
	typeSort  int
	typeName  string
	groupID   snowflake.ID
	typeKnown bool
}

// aggregate builds the report from an already loaded snapshot. It never writes.
func aggregate(snap *domain.Snapshot, asOf, now time.Time, cfg config.AllocationConfig) *domain.Report {
	opts := allocation.Options{Tolerance: cfg.ToleranceDecimal(), DefaultCode: cfg.DefaultStepCode}

	report := &domain.Report{
		ProjectID:   snap.Project.ID,
		ProjectName: snap.Project.Name,
		AsOf:        asOf,
		GeneratedAt: now,
		RatioPolicy: string(cfg.RatioPolicy),
		Rows:        []domain.RollupRow{},
		Warnings:    []domain.Warning{},
		Skipped:     []domain.SkippedUnitType{},
	}

	schedules := resolveSchedules(snap, cfg, opts, report)

	units := make(map[snowflake.ID]houseunitdomain.HouseUnit, len(snap.Units))
	for _, u := range snap.Units {
		units[u.ID] = u
	}
	contracts := make(map[snowflake.ID]*contractdomain.Contract, len(snap.Contracts))
	for i := range snap.Contracts {
		contracts[snap.Contracts[i].ID] = &snap.Contracts[i]
	}
	groups := make(map[snowflake.ID]*ordergroupdomain.OrderGroup, len(snap.OrderGroups))
	var defaultGroup *ordergroupdomain.OrderGroup
	for i := range snap.OrderGroups {
		g := &snap.OrderGroups[i]
		groups[g.ID] = g
		if g.IsDefaultForUncontracted && defaultGroup == nil {
			defaultGroup = g
		}
	}

	rows := make(map[rowKey]*rowState)
	missingDefault := false

	for _, cp := range snap.Prices {
		unit, ok := units[cp.HouseUnitID]
		if !ok {
			continue
		}
		sched, known := schedules[unit.UnitTypeID]
		if known && sched.skipped {
			continue
		}
		var steps []allocation.Step
		if known {
			steps = sched.steps
		}

		fresh, err := allocation.Allocate(cp.Price, steps, opts)
		if err != nil {
			if _, invalid := allocation.AsInvalidSchedule(err); !invalid {
				report.Warnings = append(report.Warnings, domain.Warning{
					Kind:            domain.WarningInvalidSchedule,
					Message:         fmt.Sprintf("unit %s could not be allocated: %v", unit.Label(), err),
					UnitTypeID:      unit.UnitTypeID.String(),
					ContractPriceID: cp.ID.String(),
					Err:             err,
				})
				continue
			}
		}

		amounts := fresh
		if cp.IsCacheValid {
			// A row flagged valid is only trusted while it still matches the schedule.
			if err := allocation.Reconcile(cp.Allocation(), cp.Price, steps, opts); err != nil {
				report.Warnings = append(report.Warnings, domain.Warning{
					Kind:            domain.WarningStaleCache,
					Message:         fmt.Sprintf("cached payment amounts of unit %s do not match its schedule, recomputed on read", unit.Label()),
					UnitTypeID:      unit.UnitTypeID.String(),
					ContractPriceID: cp.ID.String(),
					Err:             err,
				})
			} else {
				amounts = cp.Allocation()
			}
		} else {
			report.Warnings = append(report.Warnings, domain.Warning{
				Kind:            domain.WarningStaleCache,
				Message:         fmt.Sprintf("payment amounts of unit %s recomputed on read", unit.Label()),
				UnitTypeID:      unit.UnitTypeID.String(),
				ContractPriceID: cp.ID.String(),
			})
		}

		var contract *contractdomain.Contract
		if cp.ContractID != nil {
			contract = contracts[*cp.ContractID]
		}
		class := domain.Classify(cp, contract, asOf)

		var group *ordergroupdomain.OrderGroup
		if class == domain.Contracted {
			group = groups[contract.OrderGroupID]
		} else {
			group = defaultGroup
			if group == nil {
				missingDefault = true
			}
		}

		key := rowKey{unitTypeID: unit.UnitTypeID}
		if group != nil {
			key.groupID = group.ID
		}
		state, ok := rows[key]
		if !ok {
			state = newRowState(key, group, sched, known, cfg.UnassignedLabel)
			rows[key] = state
		}

		due := amounts.DueBy(asOf, steps).Total()
		if class == domain.Contracted {
			state.row.ContractUnits++
			state.row.ContractAmount += due
		} else {
			state.row.NonContractUnits++
			state.row.NonContractAmount += due
		}
		state.row.TotalSalesAmount += due
		state.row.TotalBudget += fresh.DueBy(asOf, steps).Total()
	}

	if missingDefault {
		err := &domain.MissingDefaultGroupError{ProjectID: snap.Project.ID}
		report.Warnings = append(report.Warnings, domain.Warning{
			Kind:           domain.WarningMissingDefaultGroup,
			Message:        err.Error(),
			OrderGroupName: cfg.UnassignedLabel,
			Err:            err,
		})
	}

	ordered := make([]*rowState, 0, len(rows))
	for _, state := range rows {
		ordered = append(ordered, state)
	}
	sort.Slice(ordered, func(i, j int) bool { return lessRow(ordered[i], ordered[j]) })

	report.Totals = domain.RollupRow{OrderGroupName: totalsLabel}
	for _, state := range ordered {
		row := state.row
		if !row.Balanced() {
			report.Warnings = append(report.Warnings, domain.Warning{
				Kind: domain.WarningInvariantViolation,
				Message: fmt.Sprintf("%s / %s: sales %d != contract %d + non-contract %d or budget %d",
					row.OrderGroupName, row.UnitTypeName, row.TotalSalesAmount,
					row.ContractAmount, row.NonContractAmount, row.TotalBudget),
				UnitTypeID:     idString(row.UnitTypeID),
				OrderGroupName: row.OrderGroupName,
			})
		}
		report.Rows = append(report.Rows, row)
		report.Totals.Add(row)
	}
	return report
}

// resolveSchedules checks every unit type's schedule once and records skips
// and warnings on the report.
func resolveSchedules(snap *domain.Snapshot, cfg config.AllocationConfig, opts allocation.Options, report *domain.Report) map[snowflake.ID]*typeSchedule {
	bySort := installmentdomain.GroupByTypeSort(snap.Steps)
	out := make(map[snowflake.ID]*typeSchedule, len(snap.UnitTypes))

	for i := range snap.UnitTypes {
		ut := &snap.UnitTypes[i]
		sched := &typeSchedule{unitType: ut, steps: installmentdomain.Steps(bySort[ut.Sort])}
		out[ut.ID] = sched

		// allocating a zero price surfaces malformed steps before the ratio check
		if _, err := allocation.Allocate(0, sched.steps, opts); err != nil {
			if _, ratio := allocation.AsInvalidSchedule(err); !ratio {
				sched.skipped = true
				report.Skipped = append(report.Skipped, domain.SkippedUnitType{
					UnitTypeID:   ut.ID,
					UnitTypeName: ut.Name,
					Reason:       err.Error(),
				})
				continue
			}
		}

		err := allocation.CheckRatios(sched.steps, opts)
		if err == nil {
			continue
		}
		invalid, ok := allocation.AsInvalidSchedule(err)
		if !ok {
			sched.skipped = true
			report.Skipped = append(report.Skipped, domain.SkippedUnitType{
				UnitTypeID:   ut.ID,
				UnitTypeName: ut.Name,
				Reason:       err.Error(),
			})
			continue
		}

		report.Warnings = append(report.Warnings, domain.Warning{
			Kind:       domain.WarningInvalidSchedule,
			Message:    fmt.Sprintf("unit type %s: ratios sum to %s", ut.Name, invalid.RatioSum.String()),
			UnitTypeID: ut.ID.String(),
			Err:        invalid,
		})
		if cfg.Rejects() {
			sched.skipped = true
			report.Skipped = append(report.Skipped, domain.SkippedUnitType{
				UnitTypeID:   ut.ID,
				UnitTypeName: ut.Name,
				Reason:       invalid.Error(),
			})
		}
	}
	return out
}

func newRowState(key rowKey, group *ordergroupdomain.OrderGroup, sched *typeSchedule, known bool, unassigned string) *rowState {
	state := &rowState{groupID: key.groupID, typeKnown: known}
	if group != nil {
		id := group.ID
		state.row.OrderGroupID = &id
		state.row.OrderGroupName = group.Name
	} else {
		state.row.OrderGroupName = unassigned
	}
	if known {
		id := sched.unitType.ID
		state.row.UnitTypeID = &id
		state.row.UnitTypeName = sched.unitType.Name
		state.typeSort = sched.unitType.Sort
		state.typeName = sched.unitType.Name
	} else {
		state.row.UnitTypeName = unassigned
	}
	return state
}

// lessRow orders by unit type (sort, name, id), then order group id with the
// unassigned bucket last. Unknown unit types go after every known one.
func lessRow(a, b *rowState) bool {
	if a.typeKnown != b.typeKnown {
		return a.typeKnown
	}
	if a.typeSort != b.typeSort {
		return a.typeSort < b.typeSort
	}
	if a.typeName != b.typeName {
		return a.typeName < b.typeName
	}
	at, bt := idValue(a.row.UnitTypeID), idValue(b.row.UnitTypeID)
	if at != bt {
		return at < bt
	}
	if (a.groupID == 0) != (b.groupID == 0) {
		return b.groupID == 0
	}
	return a.groupID < b.groupID
}

func idValue(id *snowflake.ID) int64 {
	if id == nil {
		return 0
	}
	return id.Int64()
}

func idString(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
