package auth

import (
	"github.com/costscopehq/costscope/internal/auth/repository"
	"github.com/costscopehq/costscope/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
