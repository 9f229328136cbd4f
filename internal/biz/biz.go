package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewTopupConfig,
	NewOrderEvents,
	NewOrderUseCase,
	NewConfirmUseCase,
	NewAsyncConfirmDispatcher,
	NewReconcileUseCase,
	NewStatsUseCase,
	NewAdminAuthUseCase,
)
