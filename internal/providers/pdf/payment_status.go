package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"
	appconfig "github.com/smallbiznis/estatebook/internal/config"
	"github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNilReport = errors.New("nil_report")

type Params struct {
	fx.In

	Config appconfig.Config
	Log    *zap.Logger
}

type MarotoProvider struct {
	fonts []*entity.CustomFont
}

// New loads PDF_FONT_PATH, or the first Hangul font found on the host. An
// explicitly configured font that fails to load is a startup error.
func New(p Params) (Provider, error) {
	log := p.Log.Named("pdf.provider")
	path := p.Config.PDF.FontPath
	if path == "" {
		path = discoverFont()
	}
	if path == "" {
		log.Warn("no unicode font configured, reports with Korean text cannot be rendered as pdf")
		return &MarotoProvider{}, nil
	}

	provider, err := NewWithFont(path)
	if err != nil {
		return nil, fmt.Errorf("load pdf font %s: %w", path, err)
	}
	log.Info("pdf font loaded", zap.String("path", path))
	return provider, nil
}

func NewWithFont(path string) (*MarotoProvider, error) {
	fonts, err := loadFonts(path)
	if err != nil {
		return nil, err
	}
	return &MarotoProvider{fonts: fonts}, nil
}

var (
	headerText = props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Center}
	cellText   = props.Text{Size: 8, Align: align.Right}
	labelText  = props.Text{Size: 8, Align: align.Left}
)

func (p *MarotoProvider) RenderPaymentStatus(ctx context.Context, report *domain.Report) (io.Reader, error) {
	if report == nil {
		return nil, ErrNilReport
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	builder := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		})
	if len(p.fonts) > 0 {
		builder = builder.
			WithCustomFonts(p.fonts).
			WithDefaultFont(&props.Font{Family: fontFamily})
	} else if needsUnicodeFont(report) {
		return nil, ErrFontUnavailable
	}

	m := maroto.New(builder.Build())

	m.AddRow(12,
		text.NewCol(12, "Payment status by unit type", props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(14,
		col.New(6).Add(
			text.New("Project: "+report.ProjectName, props.Text{Top: 0, Size: 9}),
			text.New("As of: "+report.AsOf.Format("2006-01-02"), props.Text{Top: 5, Size: 9}),
		),
		col.New(6).Add(
			text.New("Generated: "+report.GeneratedAt.Format("2006-01-02 15:04"), props.Text{Top: 0, Size: 9, Align: align.Right}),
			text.New("Ratio policy: "+report.RatioPolicy, props.Text{Top: 5, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(8,
		text.NewCol(2, "Order group", headerText),
		text.NewCol(2, "Unit type", headerText),
		text.NewCol(1, "Contract", headerText),
		text.NewCol(1, "Non-contract", headerText),
		text.NewCol(2, "Contract amount", headerText),
		text.NewCol(2, "Non-contract amount", headerText),
		text.NewCol(2, "Total sales", headerText),
	)
	for _, row := range report.Rows {
		m.AddRow(7, rowCols(row)...)
	}
	m.AddRow(8, rowCols(report.Totals)...)

	if len(report.Warnings) > 0 || len(report.Skipped) > 0 {
		m.AddRow(10, text.NewCol(12, "Notes", props.Text{Style: fontstyle.Bold, Size: 10, Top: 3}))
		for _, skipped := range report.Skipped {
			m.AddRow(5, text.NewCol(12, fmt.Sprintf("skipped %s: %s", skipped.UnitTypeName, skipped.Reason), props.Text{Size: 7}))
		}
		for _, w := range report.Warnings {
			m.AddRow(5, text.NewCol(12, fmt.Sprintf("[%s] %s", w.Kind, w.Message), props.Text{Size: 7}))
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func rowCols(row domain.RollupRow) []core.Col {
	return []core.Col{
		text.NewCol(2, row.OrderGroupName, labelText),
		text.NewCol(2, row.UnitTypeName, labelText),
		text.NewCol(1, humanize.Comma(int64(row.ContractUnits)), cellText),
		text.NewCol(1, humanize.Comma(int64(row.NonContractUnits)), cellText),
		text.NewCol(2, humanize.Comma(row.ContractAmount), cellText),
		text.NewCol(2, humanize.Comma(row.NonContractAmount), cellText),
		text.NewCol(2, humanize.Comma(row.TotalSalesAmount), cellText),
	}
}
