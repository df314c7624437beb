package xlsx

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRenderPaymentStatus(t *testing.T) {
	report := &domain.Report{
		ProjectName: "Riverside",
		AsOf:        time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Rows: []domain.RollupRow{{
			OrderGroupName:    "Phase 1",
			UnitTypeName:      "84A",
			NonContractUnits:  12,
			NonContractAmount: 2_907_192_000,
			TotalSalesAmount:  2_907_192_000,
			TotalBudget:       2_907_192_000,
		}},
		Totals:  domain.RollupRow{OrderGroupName: "Total", NonContractUnits: 12, NonContractAmount: 2_907_192_000, TotalSalesAmount: 2_907_192_000, TotalBudget: 2_907_192_000},
		Skipped: []domain.SkippedUnitType{{UnitTypeName: "59B", Reason: "invalid_schedule"}},
	}

	r, err := New().RenderPaymentStatus(context.Background(), report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(r)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue(rowsSheet, "A4")
	require.NoError(t, err)
	assert.Equal(t, "Phase 1", got)

	raw, err := f.GetCellValue(rowsSheet, "F4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "2907192000", raw)

	total, err := f.GetCellValue(rowsSheet, "A5")
	require.NoError(t, err)
	assert.Equal(t, "Total", total)

	assert.Contains(t, f.GetSheetList(), warningsSheet)
	skipped, err := f.GetCellValue(warningsSheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "59B", skipped)
}
