package pdf

import (
	"errors"
	"os"

	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/repository"
	"github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"golang.org/x/text/encoding/charmap"
)

// ErrFontUnavailable is returned when a report needs glyphs outside cp1252
// and no TrueType font was loaded.
var ErrFontUnavailable = errors.New("pdf_font_unavailable")

const fontFamily = "report-sans"

// Hangul-capable TrueType fonts shipped by common OS packages. TTC and CFF
// based OTF files cannot be embedded, so only plain TTF paths are listed.
var systemFontPaths = []string{
	"/usr/share/fonts/truetype/nanum/NanumGothic.ttf",
	"/usr/share/fonts/nanum/NanumGothic.ttf",
	"/usr/share/fonts/nanum-fonts/NanumGothic.ttf",
	"/usr/share/fonts/truetype/unfonts-core/UnDotum.ttf",
	"/usr/share/fonts/truetype/baekmuk/dotum.ttf",
	"/System/Library/Fonts/Supplemental/AppleGothic.ttf",
	"/Library/Fonts/NanumGothic.ttf",
	`C:\Windows\Fonts\malgun.ttf`,
}

func discoverFont() string {
	for _, path := range systemFontPaths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadFonts registers one file for the regular and bold faces.
func loadFonts(path string) ([]*entity.CustomFont, error) {
	return repository.New().
		AddUTF8Font(fontFamily, fontstyle.Normal, path).
		AddUTF8Font(fontFamily, fontstyle.Bold, path).
		Load()
}

func needsUnicodeFont(report *domain.Report) bool {
	texts := []string{report.ProjectName, report.RatioPolicy, report.Totals.OrderGroupName, report.Totals.UnitTypeName}
	for _, row := range report.Rows {
		texts = append(texts, row.OrderGroupName, row.UnitTypeName)
	}
	for _, skipped := range report.Skipped {
		texts = append(texts, skipped.UnitTypeName, skipped.Reason)
	}
	for _, w := range report.Warnings {
		texts = append(texts, w.Message)
	}
	for _, s := range texts {
		if !latinOnly(s) {
			return true
		}
	}
	return false
}

func latinOnly(s string) bool {
	for _, r := range s {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return false
		}
	}
	return true
}
