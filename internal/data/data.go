package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topup-service/internal/conf"
	"topup-service/internal/data/model"
	topupErrors "topup-service/internal/errors"

	kratosErrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewData,
	NewOrderRepo,
	NewNotificationLogRepo,
	NewStatsRepo,
	NewOrderLocker,
	NewGatewayClient,
	NewConfirmDispatcher,
)

// Data 数据层结构体
type Data struct {
	db  *gorm.DB
	rdb *redis.Client // 可能为 nil（未配置 Redis）
}

// NewDB 创建数据库连接并迁移表结构
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	db, err := gorm.Open(mysql.Open(c.Data.Database.Source), &gorm.Config{
		TranslateError: true, // 唯一键冲突转换为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Order{}, &model.NotificationLog{}); err != nil {
		return nil, err
	}
	return db, nil
}

// NewRedis 创建 Redis 连接，未配置地址时返回 nil
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil || c.Data.Redis.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           int(c.Data.Redis.Db),
		ReadTimeout:  c.Data.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Data.Redis.WriteTimeout.AsDuration(),
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 基于 Redis 创建分布式锁，没有 Redis 时返回 nil
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	if rdb == nil {
		return nil
	}
	return redsync.New(goredis.NewPool(rdb))
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.NewHelper(logger).Errorf("failed to close redis: %v", err)
			}
		}
	}

	return &Data{
		db:  db,
		rdb: rdb,
	}, cleanup, nil
}

// storageError 将数据库错误包装为 StorageError，已是业务错误的原样返回
func storageError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var kerr *kratosErrors.Error
	if errors.As(err, &kerr) {
		return err
	}
	return topupErrors.ErrorStorage(format, args...).WithCause(err)
}

// cacheContext 缓存操作使用独立的短超时 context，不受请求取消影响
func cacheContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 1*time.Second)
}
