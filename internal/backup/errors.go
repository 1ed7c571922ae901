package backup

import (
	"errors"
	"fmt"
)

// ErrNotFound 目标备份任务不存在
var ErrNotFound = errors.New("备份任务不存在")

// ValidationError 请求参数校验失败，同步拒绝，不落库
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidationError 判断err是否为参数校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
