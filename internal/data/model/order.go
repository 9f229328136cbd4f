package model

import (
	"time"

	"gorm.io/datatypes"
)

// Order 充值订单表
type Order struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement"`
	OrderID           string         `gorm:"uniqueIndex;type:varchar(64);not null"`
	TransactionID     *string        `gorm:"uniqueIndex;type:varchar(128)"` // 网关交易号，绑定前为 NULL
	GameID            string         `gorm:"type:varchar(64);index"`
	GameName          string         `gorm:"type:varchar(128)"`
	PackageID         string         `gorm:"type:varchar(64)"`
	PackageName       string         `gorm:"type:varchar(128)"`
	Amount            float64        `gorm:"type:decimal(12,2);default:0.00"`
	Price             float64        `gorm:"type:decimal(10,2);default:0.00"`
	Currency          string         `gorm:"type:varchar(8);default:'USD'"`
	UserID            string         `gorm:"type:varchar(64);not null"`
	ServerID          string         `gorm:"type:varchar(64)"`
	PaymentMethod     string         `gorm:"type:varchar(32)"`
	PaymentStatus     string         `gorm:"type:varchar(16);not null;index:idx_payment_created,priority:1"`
	FulfillmentStatus string         `gorm:"type:varchar(16);not null"`
	Status            string         `gorm:"type:varchar(16);not null"`
	Items             datatypes.JSON `gorm:"type:json"`
	TotalQuantity     int            `gorm:"default:0"`
	Notes             string         `gorm:"type:text"`
	LocallyExpired    bool           `gorm:"default:false"` // 超时清理关闭，网关未确认
	Version           int            `gorm:"default:0"`     // 每次更新递增
	CreatedAt         time.Time      `gorm:"autoCreateTime;index:idx_payment_created,priority:2"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "topup_order"
}
