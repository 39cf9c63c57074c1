package qrcode

import "go.uber.org/fx"

var Module = fx.Module("providers.qrcode",
	fx.Provide(New),
)
