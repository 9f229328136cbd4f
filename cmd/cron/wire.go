//go:build wireinject
// +build wireinject

package main

import (
	"topup-service/internal/biz"
	"topup-service/internal/conf"
	"topup-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp 初始化应用
func wireApp(*conf.Bootstrap, log.Logger) (*CronApp, func(), error) {
	panic(wire.Build(
		// Data 层
		data.ProviderSet,

		// Biz 层
		biz.ProviderSet,

		// cron 进程没有实时连接
		newPublisher,

		// App 结构
		wire.Struct(new(CronApp), "*"),
	))
}
