package data

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"topup-service/internal/biz"
	"topup-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
)

// maxLogErrorLength 与 error 列宽度一致
const maxLogErrorLength = 512

// notificationLogRepo 网关通知日志数据访问
type notificationLogRepo struct {
	data *Data
	log  *log.Helper
}

// NewNotificationLogRepo 创建通知日志 repo（返回 biz.NotificationLogRepo 接口）
func NewNotificationLogRepo(data *Data, logger log.Logger) biz.NotificationLogRepo {
	return &notificationLogRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// SaveNotificationLog 保存通知日志
func (r *notificationLogRepo) SaveNotificationLog(ctx context.Context, entry *biz.NotificationLog) error {
	m, err := toNotificationLogModel(entry)
	if err != nil {
		return err
	}
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return storageError(err, "save notification log failed")
	}
	return nil
}

func toNotificationLogModel(entry *biz.NotificationLog) (*model.NotificationLog, error) {
	var payload datatypes.JSON
	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return nil, err
		}
		payload = datatypes.JSON(raw)
	}
	return &model.NotificationLog{
		Source:        entry.Source,
		TransactionID: entry.TransactionID,
		OrderRef:      entry.OrderRef,
		OrderID:       entry.OrderID,
		Payload:       payload,
		Result:        entry.Result,
		Error:         truncate(entry.Error, maxLogErrorLength),
		ReceivedAt:    entry.ReceivedAt,
	}, nil
}

// truncate 按字符截断
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
