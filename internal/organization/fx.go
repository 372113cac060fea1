package organization

import (
	"github.com/costscopehq/costscope/internal/organization/event"
	"github.com/costscopehq/costscope/internal/organization/repository"
	"github.com/costscopehq/costscope/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(event.NewOutboxPublisher),
	fx.Provide(service.NewService),
)
