package hierarchy

import (
	"github.com/costscopehq/costscope/internal/hierarchy/repository"
	"github.com/costscopehq/costscope/internal/hierarchy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("hierarchy.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
