package main

import "topup-service/internal/biz"

// CronApp Cron 应用结构
type CronApp struct {
	orderUsecase *biz.OrderUseCase
}

// newPublisher cron 进程不推送实时消息
func newPublisher() biz.Publisher {
	return nil
}
