//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"topup-service/internal/biz"
	"topup-service/internal/conf"
	"topup-service/internal/data"
	"topup-service/internal/realtime"
	"topup-service/internal/server"
	"topup-service/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, realtime.ProviderSet, service.ProviderSet, newApp))
}
