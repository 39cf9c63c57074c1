package legacy

import (
	"github.com/smallbiznis/metalid/internal/legacy/sheets"
	"go.uber.org/fx"
)

var Module = fx.Module("legacy.source",
	fx.Provide(sheets.New),
)
