// Package xlsx exports reports as Excel workbooks.
package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
)

const (
	rowsSheet     = "Payment status"
	warningsSheet = "Warnings"
	amountFormat  = "#,##0"
)

var ErrNilReport = errors.New("nil_report")

type Provider interface {
	RenderPaymentStatus(ctx context.Context, report *domain.Report) (io.Reader, error)
}

type ExcelizeProvider struct{}

func New() Provider {
	return &ExcelizeProvider{}
}

var Module = fx.Module("xlsx.provider",
	fx.Provide(New),
)

var columns = []string{
	"Order group", "Unit type", "Contract units", "Non-contract units",
	"Contract amount", "Non-contract amount", "Total sales", "Total budget",
}

func (p *ExcelizeProvider) RenderPaymentStatus(ctx context.Context, report *domain.Report) (io.Reader, error) {
	if report == nil {
		return nil, ErrNilReport
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rowsSheet); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	numFmt := amountFormat
	amount, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("amount style: %w", err)
	}
	totalFmt := amountFormat
	total, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &totalFmt})
	if err != nil {
		return nil, fmt.Errorf("total style: %w", err)
	}

	_ = f.SetCellValue(rowsSheet, "A1", report.ProjectName)
	_ = f.SetCellValue(rowsSheet, "C1", "As of")
	_ = f.SetCellValue(rowsSheet, "D1", report.AsOf.Format("2006-01-02"))

	const headerRow = 3
	if err := f.SetSheetRow(rowsSheet, cell(1, headerRow), &columns); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(rowsSheet, cell(1, headerRow), cell(len(columns), headerRow), header); err != nil {
		return nil, err
	}

	rowNum := headerRow + 1
	for _, row := range report.Rows {
		if err := writeRow(f, rowNum, row); err != nil {
			return nil, err
		}
		rowNum++
	}
	if err := writeRow(f, rowNum, report.Totals); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(rowsSheet, cell(3, headerRow+1), cell(len(columns), rowNum-1), amount); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(rowsSheet, cell(1, rowNum), cell(len(columns), rowNum), total); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(rowsSheet, "A", "B", 18)
	_ = f.SetColWidth(rowsSheet, "C", "D", 14)
	_ = f.SetColWidth(rowsSheet, "E", "H", 20)
	_ = f.SetPanes(rowsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cell(1, headerRow+1),
		ActivePane:  "bottomLeft",
	})

	if len(report.Warnings) > 0 || len(report.Skipped) > 0 {
		if err := writeWarnings(f, report); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

func writeRow(f *excelize.File, rowNum int, row domain.RollupRow) error {
	values := []any{
		row.OrderGroupName,
		row.UnitTypeName,
		row.ContractUnits,
		row.NonContractUnits,
		row.ContractAmount,
		row.NonContractAmount,
		row.TotalSalesAmount,
		row.TotalBudget,
	}
	return f.SetSheetRow(rowsSheet, cell(1, rowNum), &values)
}

func writeWarnings(f *excelize.File, report *domain.Report) error {
	if _, err := f.NewSheet(warningsSheet); err != nil {
		return err
	}
	head := []any{"Kind", "Message", "Unit type", "Contract price"}
	if err := f.SetSheetRow(warningsSheet, "A1", &head); err != nil {
		return err
	}
	rowNum := 2
	for _, skipped := range report.Skipped {
		values := []any{"skipped", skipped.Reason, skipped.UnitTypeName, ""}
		if err := f.SetSheetRow(warningsSheet, cell(1, rowNum), &values); err != nil {
			return err
		}
		rowNum++
	}
	for _, w := range report.Warnings {
		values := []any{string(w.Kind), w.Message, w.UnitTypeID, w.ContractPriceID}
		if err := f.SetSheetRow(warningsSheet, cell(1, rowNum), &values); err != nil {
			return err
		}
		rowNum++
	}
	return f.SetColWidth(warningsSheet, "B", "B", 80)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
