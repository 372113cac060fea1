package apikey

import (
	"github.com/costscopehq/costscope/internal/apikey/repository"
	"github.com/costscopehq/costscope/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewCredentialStore),
)
