package identity

import (
	"github.com/smallbiznis/metalid/internal/identity/local"
	"github.com/smallbiznis/metalid/internal/identity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.local",
	fx.Provide(repository.Provide),
	fx.Provide(local.New),
)
