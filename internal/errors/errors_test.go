package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	err = New(ErrNotFound, "对局不存在")
	suite.Equal("资源未找到", err.Message)
	suite.Equal("对局不存在", err.Details)

	err = New(ErrInvalidStake, "stake=0", "currency=points")
	suite.Equal("stake=0; currency=points", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrMatchIDTooLong, "长度 %d 超过 %d", 40, 32)
	suite.Equal(ErrMatchIDTooLong, err.Code)
	suite.Equal("长度 40 超过 32", err.Details)
}

func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 已是 AppError 时保留原始错误码
	appErr := New(ErrNotFound, "资源不存在")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("连接超时")
	wrappedErr := Wrapf(originalErr, ErrDatabaseConnect, "数据库 %s 连接失败", "postgres")
	suite.Equal(ErrDatabaseConnect, wrappedErr.Code)
	suite.Equal("数据库 postgres 连接失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

func (suite *ErrorsTestSuite) TestIsAndGetCode() {
	err := New(ErrCannotJoinOwnGame)
	suite.True(Is(err, ErrCannotJoinOwnGame))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrCannotJoinOwnGame))

	// 经 fmt.Errorf 包装后依然可识别
	wrapped := fmt.Errorf("join: %w", err)
	suite.True(Is(wrapped, ErrCannotJoinOwnGame))

	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestKindOf() {
	cases := map[ErrorCode]Kind{
		ErrInvalidParam:       KindValidation,
		ErrInvalidMove:        KindValidation,
		ErrInvalidRoundsToWin: KindValidation,
		ErrCannotJoinOwnGame:  KindAuthorization,
		ErrNotAParticipant:    KindAuthorization,
		ErrNotAuthorityHolder: KindAuthorization,
		ErrInvalidState:       KindState,
		ErrAlreadyCommitted:   KindState,
		ErrSessionFull:        KindState,
		ErrAlreadyExists:      KindState,
		ErrNotFound:           KindNotFound,
		ErrInsufficientFunds:  KindInsufficientFunds,
		ErrAlreadySettled:     KindAlreadySettled,
		ErrInvalidReveal:      KindInvalidReveal,
		ErrDatabaseQuery:      KindInternal,
	}
	for code, kind := range cases {
		suite.Equal(kind, KindOf(New(code)), "错误码 %d", code)
	}
	suite.Equal(Kind(""), KindOf(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{Code: ErrNotFound, Message: "资源未找到"}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "match: abc"
	suite.Equal("[1002] 资源未找到: match: abc", err.Error())
}

func (suite *ErrorsTestSuite) TestWithCause() {
	err := New(ErrDatabaseQuery)
	cause := errors.New("SQL语法错误")
	err.WithCause(cause)
	suite.Equal(cause, err.Unwrap())
	suite.Equal("SQL语法错误", err.Details)

	err2 := New(ErrDatabaseQuery, "查询失败")
	err2.WithCause(cause)
	suite.Equal("查询失败", err2.Details)
}

func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrInvalidReveal, 400},
		{ErrNotFound, 404},
		{ErrCannotJoinOwnGame, 403},
		{ErrAuthentication, 401},
		{ErrTokenExpired, 401},
		{ErrInvalidState, 409},
		{ErrAlreadySettled, 409},
		{ErrInsufficientFunds, 402},
		{ErrTimeout, 408},
		{ErrDatabaseConnect, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

func (suite *ErrorsTestSuite) TestIsRetryable() {
	suite.True(IsRetryable(New(ErrTimeout)))
	suite.True(IsRetryable(New(ErrDatabaseConnect)))
	suite.False(IsRetryable(New(ErrInvalidReveal)))
	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.Greater(len(err.Stack), 0)
	suite.NotEmpty(err.GetStack())
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrNotFound, "对局不存在")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err.Code, response.Error.Code)
	suite.Equal(err.Details, response.Error.Details)
	suite.Empty(response.Error.Stack)
	suite.NotEmpty(err.Stack)
	suite.Equal(KindNotFound, response.Kind)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
