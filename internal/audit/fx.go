package audit

import (
	"github.com/smallbiznis/metalid/internal/audit/repository"
	"github.com/smallbiznis/metalid/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(repository.Provide, service.NewService),
)
