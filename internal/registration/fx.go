package registration

import (
	"github.com/smallbiznis/metalid/internal/registration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registration.service",
	fx.Provide(service.New),
)
