package server

import (
	"context"
	"encoding/json"

	"topup-service/internal/biz"
	"topup-service/internal/conf"
	topupErrors "topup-service/internal/errors"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// Confirmer 执行网关确认回调
type Confirmer interface {
	Confirm(ctx context.Context, transactionID string) error
}

// MQConsumerServer consumes confirm events from RocketMQ
type MQConsumerServer struct {
	c         rocketmq.PushConsumer
	confirmer Confirmer
	conf      *conf.Data_RocketMQ
	log       *log.Helper
	enabled   bool
}

// NewMQConsumerServer creates a RocketMQ consumer server
func NewMQConsumerServer(c *conf.Bootstrap, confirmer *biz.ConfirmUseCase, logger log.Logger) *MQConsumerServer {
	logHelper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{log: logHelper, enabled: false}
	}
	mq := c.Data.Rocketmq

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		consumer.WithGroupName(mq.GroupName),
		consumer.WithRetry(int(mq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(16),
	)
	if err != nil {
		logHelper.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{log: logHelper, enabled: false}
	}

	return &MQConsumerServer{
		c:         r,
		confirmer: confirmer,
		conf:      mq,
		log:       logHelper,
		enabled:   true,
	}
}

// Start starts the consumer
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	if s.c == nil {
		s.log.Warnf("MQConsumerServer consumer is nil, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Topic)

	err := s.c.Subscribe(s.conf.Topic, consumer.MessageSelector{}, s.handler)
	if err != nil {
		// 消息队列不可用时确认回调会降级为进程内调用，不影响启动
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Topic, err)
		return nil
	}

	err = s.c.Start()
	if err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}

	return nil
}

// Stop stops the consumer
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	retry := false
	for _, msg := range msgs {
		var event biz.ConfirmEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("Unmarshal message failed: %v, body: %s", err, string(msg.Body))
			continue
		}
		if event.TransactionID == "" {
			s.log.Warnf("Confirm event without transaction id, skipped")
			continue
		}

		err := s.confirmer.Confirm(ctx, event.TransactionID)
		if err == nil {
			continue
		}
		// 配置错误重试也不会成功
		if topupErrors.IsConfiguration(err) {
			s.log.Errorf("Confirm skipped: transaction_id=%s, order_id=%s, error=%v", event.TransactionID, event.OrderID, err)
			continue
		}
		s.log.Warnf("Confirm failed, will retry: transaction_id=%s, order_id=%s, error=%v", event.TransactionID, event.OrderID, err)
		retry = true
	}

	if retry {
		return consumer.ConsumeRetryLater, nil
	}
	return consumer.ConsumeSuccess, nil
}
