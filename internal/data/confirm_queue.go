package data

import (
	"context"
	"encoding/json"
	"time"

	"topup-service/internal/biz"
	"topup-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
)

// confirmQueue 通过 RocketMQ 投递确认回调，发送失败时降级为进程内异步调用
type confirmQueue struct {
	producer rocketmq.Producer
	topic    string
	fallback *biz.AsyncConfirmDispatcher
	log      *log.Helper
}

// NewConfirmDispatcher 创建确认回调投递：启用 RocketMQ 时走消息队列，否则进程内异步
func NewConfirmDispatcher(c *conf.Bootstrap, async *biz.AsyncConfirmDispatcher, logger log.Logger) (biz.ConfirmDispatcher, func(), error) {
	logHelper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return async, async.Wait, nil
	}
	mq := c.Data.Rocketmq

	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		producer.WithGroupName(mq.GroupName),
		producer.WithRetry(int(mq.RetryTimes)),
		producer.WithSendMsgTimeout(3*time.Second),
	)
	if err != nil {
		logHelper.Errorf("init rocketmq producer error: %v, falling back to in-process confirm", err)
		return async, async.Wait, nil
	}
	if err := p.Start(); err != nil {
		logHelper.Errorf("start rocketmq producer error: %v, falling back to in-process confirm", err)
		return async, async.Wait, nil
	}

	q := &confirmQueue{
		producer: p,
		topic:    mq.Topic,
		fallback: async,
		log:      logHelper,
	}
	cleanup := func() {
		if err := p.Shutdown(); err != nil {
			logHelper.Errorf("shutdown rocketmq producer error: %v", err)
		}
		async.Wait()
	}
	return q, cleanup, nil
}

// DispatchConfirm 异步发送确认消息，不等待 broker 应答
func (q *confirmQueue) DispatchConfirm(ctx context.Context, transactionID, orderID string) error {
	body, err := json.Marshal(biz.NewConfirmEvent(transactionID, orderID))
	if err != nil {
		return err
	}
	msg := primitive.NewMessage(q.topic, body)
	msg.WithKeys([]string{transactionID})

	detached := context.WithoutCancel(ctx)
	err = q.producer.SendAsync(detached, func(_ context.Context, result *primitive.SendResult, err error) {
		if err != nil {
			q.log.Errorf("Send confirm event failed: transaction_id=%s, error=%v", transactionID, err)
			// 降级为进程内调用
			_ = q.fallback.DispatchConfirm(detached, transactionID, orderID)
			return
		}
		q.log.Infof("Confirm event sent: transaction_id=%s, order_id=%s, msg_id=%s", transactionID, orderID, result.MsgID)
	}, msg)
	if err != nil {
		q.log.Errorf("Send confirm event failed: transaction_id=%s, error=%v", transactionID, err)
		return q.fallback.DispatchConfirm(detached, transactionID, orderID)
	}
	return nil
}
