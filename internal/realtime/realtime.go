package realtime

import (
	"topup-service/internal/biz"

	"github.com/google/wire"
)

// ProviderSet is realtime providers.
var ProviderSet = wire.NewSet(
	NewHub,
	wire.Bind(new(biz.Publisher), new(*Hub)),
	wire.Bind(new(TokenVerifier), new(*biz.AdminAuthUseCase)),
)
