package providers

import (
	"github.com/costscopehq/costscope/internal/providers/email"
	"github.com/costscopehq/costscope/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
