package audit

import (
	"github.com/costscopehq/costscope/internal/audit/repository"
	"github.com/costscopehq/costscope/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
