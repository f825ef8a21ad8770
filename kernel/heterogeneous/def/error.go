package def

import (
	"errors"
	"fmt"
)

const (
	// 处理成功类
	ErrStatusSucc = 200
	// 拒绝处理类错误状态
	ErrStatusRefused = 400
	// 内部错误类错误状态
	ErrStatusInternalErr = 500
	// 外部链/本链调用错误状态
	ErrStatusUpstreamErr = 502
)

type Error struct {
	// 用于统计和监控的错误分类（类似http的2xx、4xx、5xx）
	Status int
	// 用于标识具体错误的详细错误码
	Code int
	// 用于说明具体错误的说明信息
	Msg string
}

func CastError(err error) *Error {
	return CastErrorDefault(err, ErrUnknown)
}

func CastErrorDefault(err error, defaultErr *Error) *Error {
	if err == nil {
		return nil
	}
	var defErr *Error
	if errors.As(err, &defErr) {
		return defErr
	}

	return defaultErr.More("%s", err.Error())
}

func (t *Error) Error() string {
	return fmt.Sprintf("Err:%d-%d-%s", t.Status, t.Code, t.Msg)
}

func (t *Error) More(format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	return &Error{t.Status, t.Code, t.Msg + "+" + msg}
}

func (t *Error) Equal(rhs *Error) bool {
	if rhs == nil {
		return false
	}

	return t.Code == rhs.Code
}

// Is lets errors.Is match an error derived by More against its base
func (t *Error) Is(target error) bool {
	rhs, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Equal(rhs)
}

// define std error
var (
	ErrSuccess   = &Error{ErrStatusSucc, 0, "success"}
	ErrInternal  = &Error{ErrStatusInternalErr, 50000, "internal error"}
	ErrUnknown   = &Error{ErrStatusInternalErr, 50001, "unknown error"}
	ErrParameter = &Error{ErrStatusRefused, 40001, "param error"}

	// 分类：不是关注的业务交易，直接忽略
	ErrClassificationRejected = &Error{ErrStatusRefused, 40101, "classification rejected"}
	// 业务交易结构合法但业务校验不通过，记录日志后丢弃
	ErrValidationFailed = &Error{ErrStatusRefused, 40102, "validation failed"}

	// 提交
	ErrContractCallReverted   = &Error{ErrStatusUpstreamErr, 50201, "contract call reverted"}
	ErrInsufficientSignatures = &Error{ErrStatusUpstreamErr, 50202, "insufficient signatures"}
	ErrGasEstimationFailed    = &Error{ErrStatusUpstreamErr, 50203, "gas estimation failed"}
	ErrAlreadyExists          = &Error{ErrStatusRefused, 40103, "already exists"}
	ErrResendLimitExceeded    = &Error{ErrStatusRefused, 40104, "resend limit exceeded"}
	ErrSubmitFailed           = &Error{ErrStatusUpstreamErr, 50204, "submit tx failed"}

	// 账户
	ErrAccountNotFound = &Error{ErrStatusRefused, 40201, "account not found"}
	ErrAccountLocked   = &Error{ErrStatusRefused, 40202, "no unlocked account"}
	ErrInvalidAddress  = &Error{ErrStatusRefused, 40203, "invalid address"}
	ErrAssetNotFound   = &Error{ErrStatusRefused, 40204, "asset not registered"}

	// 存储
	ErrRecordNotFound = &Error{ErrStatusRefused, 40301, "record not found"}
	ErrInvalidState   = &Error{ErrStatusRefused, 40302, "invalid record state"}
	ErrStorage        = &Error{ErrStatusInternalErr, 50301, "storage error"}

	// 虚拟银行
	ErrInvalidBank = &Error{ErrStatusRefused, 40401, "invalid virtual bank"}
	ErrNotMember   = &Error{ErrStatusRefused, 40402, "node is not a virtual bank member"}
)
