package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006

	// 参数校验 (2000-2099)
	ErrInvalidMove        ErrorCode = 2001
	ErrInvalidStake       ErrorCode = 2002
	ErrInvalidRoundsToWin ErrorCode = 2003
	ErrMatchIDTooLong     ErrorCode = 2004
	ErrInvalidCurrency    ErrorCode = 2005

	// 身份与权限 (2100-2199)
	ErrCannotJoinOwnGame   ErrorCode = 2101
	ErrNotAParticipant     ErrorCode = 2102
	ErrNotAuthorityHolder  ErrorCode = 2103
	ErrCannotReferYourself ErrorCode = 2104

	// 状态错误 (2200-2299)
	ErrInvalidState         ErrorCode = 2200
	ErrMatchNotJoinable     ErrorCode = 2201
	ErrAlreadyCommitted     ErrorCode = 2202
	ErrNotCommitted         ErrorCode = 2203
	ErrSessionFull          ErrorCode = 2204
	ErrAlreadyParticipant   ErrorCode = 2205
	ErrMoveAlreadySubmitted ErrorCode = 2206
	ErrNonceReused          ErrorCode = 2207
	ErrReferrerAlreadySet   ErrorCode = 2208

	// 资金 (2300-2499)
	ErrInsufficientFunds ErrorCode = 2300
	ErrAlreadySettled    ErrorCode = 2400

	// 承诺校验 (2500-2599)
	ErrInvalidReveal       ErrorCode = 2500
	ErrInvalidReferralCode ErrorCode = 2501

	// 通信错误 (4000-4999)
	ErrWebSocketSend   ErrorCode = 4001
	ErrWebSocketClosed ErrorCode = 4003
	ErrMessageFormat   ErrorCode = 4007

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrTransaction     ErrorCode = 5005
	ErrDataIntegrity   ErrorCode = 5006

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002

	// 安全错误 (7000-7999)
	ErrAuthentication ErrorCode = 7000
	ErrAuthorization  ErrorCode = 7001
	ErrTokenExpired   ErrorCode = 7002
	ErrTokenInvalid   ErrorCode = 7003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",

	ErrInvalidMove:        "无效的招式",
	ErrInvalidStake:       "无效的押注金额",
	ErrInvalidRoundsToWin: "无效的胜局数",
	ErrMatchIDTooLong:     "对局ID过长",
	ErrInvalidCurrency:    "无效的货币类型",

	ErrCannotJoinOwnGame:   "不能加入自己创建的对局",
	ErrNotAParticipant:     "不是对局参与者",
	ErrNotAuthorityHolder:  "不是当前权限持有者",
	ErrCannotReferYourself: "不能推荐自己",

	ErrInvalidState:         "对局状态不允许该操作",
	ErrMatchNotJoinable:     "对局不可加入",
	ErrAlreadyCommitted:     "本回合已提交承诺",
	ErrNotCommitted:         "尚未提交承诺",
	ErrSessionFull:          "对局已满",
	ErrAlreadyParticipant:   "已是对局参与者",
	ErrMoveAlreadySubmitted: "本回合已出招",
	ErrNonceReused:          "nonce 已在本对局使用过",
	ErrReferrerAlreadySet:   "推荐人已设置",

	ErrInsufficientFunds: "余额不足",
	ErrAlreadySettled:    "对局已结算",

	ErrInvalidReveal:       "揭示与承诺不匹配",
	ErrInvalidReferralCode: "无效的推荐码",

	ErrWebSocketSend:   "WebSocket发送失败",
	ErrWebSocketClosed: "WebSocket连接已关闭",
	ErrMessageFormat:   "消息格式错误",

	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrTransaction:     "事务处理失败",
	ErrDataIntegrity:   "数据完整性错误",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",

	ErrAuthentication: "认证失败",
	ErrAuthorization:  "授权失败",
	ErrTokenExpired:   "令牌已过期",
	ErrTokenInvalid:   "无效的令牌",
}

// Kind 错误大类
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindState             Kind = "state"
	KindNotFound          Kind = "not_found"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindAlreadySettled    Kind = "already_settled"
	KindInvalidReveal     Kind = "invalid_reveal"
	KindInternal          Kind = "internal"
)

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`            // 错误码
	Message string       `json:"message"`         // 错误消息
	Details string       `json:"details"`         // 详细信息
	Cause   error        `json:"-"`               // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"` // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误，已是 AppError 时保留原始错误码
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr = New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}

	return ErrUnknown
}

// KindOf 返回错误所属大类
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	code := GetCode(err)
	switch {
	case code == ErrInvalidParam || (code >= 2000 && code < 2100) || code == ErrMessageFormat:
		return KindValidation
	case code >= 2100 && code < 2200, code == ErrAuthorization, code == ErrPermissionDenied,
		code == ErrAuthentication, code == ErrTokenExpired, code == ErrTokenInvalid:
		return KindAuthorization
	case code >= 2200 && code < 2300, code == ErrAlreadyExists:
		return KindState
	case code == ErrNotFound:
		return KindNotFound
	case code == ErrInsufficientFunds:
		return KindInsufficientFunds
	case code == ErrAlreadySettled:
		return KindAlreadySettled
	case code >= 2500 && code < 2600:
		return KindInvalidReveal
	default:
		return KindInternal
	}
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()

		// 跳过runtime和本包的调用
		if strings.Contains(frame.Function, "runtime.") ||
			strings.Contains(frame.Function, "github.com/wfunc/rps-arena/internal/errors") {
			if !more {
				break
			}
			continue
		}

		e.Stack = append(e.Stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})

		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrAuthentication, ErrTokenExpired, ErrTokenInvalid:
		return 401
	case ErrTimeout:
		return 408
	}

	switch KindOf(e) {
	case KindValidation, KindInvalidReveal:
		return 400
	case KindAuthorization:
		return 403
	case KindNotFound:
		return 404
	case KindState, KindAlreadySettled:
		return 409
	case KindInsufficientFunds:
		return 402
	}

	if e.Code >= 5000 && e.Code <= 5999 {
		return 503
	}
	return 500
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrTimeout, ErrDatabaseConnect, ErrTransaction:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	Kind      Kind      `json:"kind,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应，不含调用栈
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	public := *err
	public.Stack = nil
	return &ErrorResponse{
		Success:   false,
		Error:     &public,
		Kind:      KindOf(err),
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
