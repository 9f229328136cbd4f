package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationLog 网关通知日志表
type NotificationLog struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	Source        string         `gorm:"type:varchar(16);not null"` // webhook/confirm/legacy
	TransactionID string         `gorm:"type:varchar(128);index"`
	OrderRef      string         `gorm:"type:varchar(64)"`
	OrderID       string         `gorm:"type:varchar(64);index"`
	Payload       datatypes.JSON `gorm:"type:json"`
	Result        string         `gorm:"type:varchar(16);not null"`
	Error         string         `gorm:"type:varchar(512)"`
	ReceivedAt    time.Time      `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index"`
}

// TableName 指定表名
func (NotificationLog) TableName() string {
	return "topup_notification_log"
}
