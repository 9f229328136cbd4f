package server

import (
	"topup-service/internal/biz"

	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(
	NewHTTPServer,
	NewMQConsumerServer,
	wire.Bind(new(AdminVerifier), new(*biz.AdminAuthUseCase)),
)
