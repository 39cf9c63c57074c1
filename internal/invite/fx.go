package invite

import (
	"github.com/smallbiznis/metalid/internal/invite/repository"
	"github.com/smallbiznis/metalid/internal/invite/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invite.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
