package providers

import (
	"github.com/smallbiznis/estatebook/internal/providers/pdf"
	"github.com/smallbiznis/estatebook/internal/providers/xlsx"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
	xlsx.Module,
)
