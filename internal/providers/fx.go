package providers

import (
	"github.com/smallbiznis/metalid/internal/providers/email"
	"github.com/smallbiznis/metalid/internal/providers/pdf"
	"github.com/smallbiznis/metalid/internal/providers/qrcode"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	qrcode.Module,
)
