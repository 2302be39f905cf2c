package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 验证错误
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	ErrCodeInvalidQuery      ErrorCode = "INVALID_QUERY"
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeInvalidFileFormat ErrorCode = "INVALID_FILE_FORMAT"

	// 能力不可用（模型初始化失败、存储不支持向量检索）
	ErrCodeCapabilityUnavailable ErrorCode = "CAPABILITY_UNAVAILABLE"

	// 存储错误
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配，配合 errors.Is 使用哨兵错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrInvalidArgument       = &AppError{Code: ErrCodeInvalidArgument}
	ErrInvalidQuery          = &AppError{Code: ErrCodeInvalidQuery}
	ErrDimensionMismatch     = &AppError{Code: ErrCodeDimensionMismatch}
	ErrInvalidFileFormat     = &AppError{Code: ErrCodeInvalidFileFormat}
	ErrCapabilityUnavailable = &AppError{Code: ErrCodeCapabilityUnavailable}
	ErrStorageFailure        = &AppError{Code: ErrCodeStorageFailure}
	ErrNotFound              = &AppError{Code: ErrCodeNotFound}
)

// 错误构造函数

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidArgumentError 创建参数无效错误
func NewInvalidArgumentError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidArgument,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidQueryError 创建查询无效错误
func NewInvalidQueryError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidQuery,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewDimensionMismatchError 创建向量维度不一致错误
func NewDimensionMismatchError(left, right int) *AppError {
	return &AppError{
		Code:     ErrCodeDimensionMismatch,
		Message:  fmt.Sprintf("vector dimension mismatch: %d != %d", left, right),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
		Details: map[string]int{
			"left":  left,
			"right": right,
		},
	}
}

// NewInvalidFileFormatError 创建文件格式错误
func NewInvalidFileFormatError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidFileFormat,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewCapabilityUnavailableError 创建能力不可用错误
func NewCapabilityUnavailableError(capability string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeCapabilityUnavailable,
		Message:  fmt.Sprintf("%s unavailable", capability),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusServiceUnavailable,
		Cause:    cause,
	}
}

// NewStorageFailureError 创建存储错误
func NewStorageFailureError(operation string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeStorageFailure,
		Message:  fmt.Sprintf("storage %s failed", operation),
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
		Cause:    cause,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// IsAppError 检查是否为AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}
