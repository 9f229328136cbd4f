package errors

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
)

// Topup Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Topup 固定为 21
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   01: 配置模块
//   02: 加解密模块
//   03: 订单模块
//   04: 存储模块
//   05: 网关模块
//   06: 认证模块

// 配置模块错误码 (210100-210199)
const (
	// ErrCodeSecretKeyInvalid 密钥缺失或格式错误
	ErrCodeSecretKeyInvalid = 210101
	// ErrCodeAPIKeyMissing 网关 API Key 缺失
	ErrCodeAPIKeyMissing = 210102
)

// 加解密模块错误码 (210200-210299)
const (
	// ErrCodeDecryptFailed 解密失败
	ErrCodeDecryptFailed = 210201
	// ErrCodeEncryptFailed 加密失败
	ErrCodeEncryptFailed = 210202
)

// 订单模块错误码 (210300-210399)
const (
	// ErrCodeOrderNotFound 订单不存在
	ErrCodeOrderNotFound = 210301
	// ErrCodeTransitionConflict 状态迁移冲突
	ErrCodeTransitionConflict = 210302
	// ErrCodeInvalidArgument 参数错误
	ErrCodeInvalidArgument = 210303
)

// 存储模块错误码 (210400-210499)
const (
	// ErrCodeStorageUnavailable 存储不可用
	ErrCodeStorageUnavailable = 210401
	// ErrCodeLockFailed 获取订单锁失败
	ErrCodeLockFailed = 210402
)

// 网关模块错误码 (210500-210599)
const (
	// ErrCodeConfirmFailed 网关确认失败
	ErrCodeConfirmFailed = 210501
	// ErrCodeGatewayRequestFailed 网关请求失败
	ErrCodeGatewayRequestFailed = 210502
)

// 认证模块错误码 (210600-210699)
const (
	// ErrCodeUnauthorized 未认证
	ErrCodeUnauthorized = 210601
)

// 错误原因（kratos errors 的 reason 字段）
const (
	ReasonConfiguration   = "CONFIGURATION_ERROR"
	ReasonDecryption      = "DECRYPTION_ERROR"
	ReasonOrderNotFound   = "ORDER_NOT_FOUND"
	ReasonStorage         = "STORAGE_ERROR"
	ReasonOutboundConfirm = "OUTBOUND_CONFIRM_ERROR"
	ReasonConflict        = "TRANSITION_CONFLICT"
	ReasonUnauthorized    = "UNAUTHORIZED"
	ReasonInvalidArgument = "INVALID_ARGUMENT"
	ReasonGateway         = "GATEWAY_ERROR"
)

func newError(httpCode int, reason string, bizCode int, format string, args ...interface{}) *errors.Error {
	return errors.New(httpCode, reason, fmt.Sprintf(format, args...)).
		WithMetadata(map[string]string{"code": fmt.Sprint(bizCode)})
}

func is(err error, httpCode int, reason string) bool {
	if err == nil {
		return false
	}
	e := errors.FromError(err)
	return e.Reason == reason && int(e.Code) == httpCode
}

// ErrorConfiguration 配置错误（密钥缺失或格式错误），对外只返回 500
func ErrorConfiguration(format string, args ...interface{}) *errors.Error {
	return newError(500, ReasonConfiguration, ErrCodeSecretKeyInvalid, format, args...)
}

// IsConfiguration 是否为配置错误
func IsConfiguration(err error) bool { return is(err, 500, ReasonConfiguration) }

// ErrorDecryption 密文格式错误、密钥不匹配或被篡改
func ErrorDecryption(format string, args ...interface{}) *errors.Error {
	return newError(400, ReasonDecryption, ErrCodeDecryptFailed, format, args...)
}

// IsDecryption 是否为解密错误
func IsDecryption(err error) bool { return is(err, 400, ReasonDecryption) }

// ErrorOrderNotFound 订单不存在
func ErrorOrderNotFound(format string, args ...interface{}) *errors.Error {
	return newError(404, ReasonOrderNotFound, ErrCodeOrderNotFound, format, args...)
}

// IsOrderNotFound 是否为订单不存在
func IsOrderNotFound(err error) bool { return is(err, 404, ReasonOrderNotFound) }

// ErrorStorage 存储层不可用
func ErrorStorage(format string, args ...interface{}) *errors.Error {
	return newError(503, ReasonStorage, ErrCodeStorageUnavailable, format, args...)
}

// IsStorage 是否为存储错误
func IsStorage(err error) bool { return is(err, 503, ReasonStorage) }

// ErrorOutboundConfirm 网关确认回调失败
func ErrorOutboundConfirm(format string, args ...interface{}) *errors.Error {
	return newError(502, ReasonOutboundConfirm, ErrCodeConfirmFailed, format, args...)
}

// IsOutboundConfirm 是否为确认回调错误
func IsOutboundConfirm(err error) bool { return is(err, 502, ReasonOutboundConfirm) }

// ErrorConflict 状态迁移冲突
func ErrorConflict(format string, args ...interface{}) *errors.Error {
	return newError(409, ReasonConflict, ErrCodeTransitionConflict, format, args...)
}

// IsConflict 是否为状态冲突
func IsConflict(err error) bool { return is(err, 409, ReasonConflict) }

// ErrorUnauthorized 未认证
func ErrorUnauthorized(format string, args ...interface{}) *errors.Error {
	return newError(401, ReasonUnauthorized, ErrCodeUnauthorized, format, args...)
}

// IsUnauthorized 是否为未认证
func IsUnauthorized(err error) bool { return is(err, 401, ReasonUnauthorized) }

// ErrorInvalidArgument 参数错误
func ErrorInvalidArgument(format string, args ...interface{}) *errors.Error {
	return newError(400, ReasonInvalidArgument, ErrCodeInvalidArgument, format, args...)
}

// IsInvalidArgument 是否为参数错误
func IsInvalidArgument(err error) bool { return is(err, 400, ReasonInvalidArgument) }

// ErrorGateway 网关请求失败
func ErrorGateway(format string, args ...interface{}) *errors.Error {
	return newError(502, ReasonGateway, ErrCodeGatewayRequestFailed, format, args...)
}

// IsGateway 是否为网关错误
func IsGateway(err error) bool { return is(err, 502, ReasonGateway) }
