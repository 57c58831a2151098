package service

import (
	"errors"
	"fmt"

	"watchdog/pkg/rbac"
	"watchdog/pkg/util"
)

// 错误类别，用 errors.Is 判断
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDependency   = errors.New("dependency failure")
)

// OpError 带操作名的类别化错误
type OpError struct {
	Op     string
	Kind   error
	Reason string
	Err    error
}

func (e *OpError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Is(target error) bool {
	return target == e.Kind
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func invalid(op, format string, args ...any) error {
	return &OpError{Op: op, Kind: ErrValidation, Reason: fmt.Sprintf(format, args...)}
}

func notFound(op, entity string, id int) error {
	return &OpError{Op: op, Kind: ErrNotFound, Reason: fmt.Sprintf("%s %d", entity, id)}
}

func denied(op string, err error) error {
	reason := ""
	var pd *rbac.PermissionDeniedError
	if errors.As(err, &pd) {
		reason = pd.Reason
	}
	return &OpError{Op: op, Kind: ErrUnauthorized, Reason: reason, Err: err}
}

// dependency 包装存储层错误，Reason 是错误分类标签
func dependency(op string, err error) error {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	_, kind := util.IsRetryableError(err)
	return &OpError{Op: op, Kind: ErrDependency, Reason: kind, Err: err}
}

func isDuplicateKey(err error) bool {
	_, kind := util.IsRetryableError(err)
	return kind == "duplicate_key"
}

// KindOf 返回最外层 OpError 的类别；未分类的错误视为 ErrDependency
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	var pd *rbac.PermissionDeniedError
	if errors.As(err, &pd) {
		return ErrUnauthorized
	}
	return ErrDependency
}

// Outcome 指标和日志使用的结果标签
func Outcome(err error) string {
	switch KindOf(err) {
	case nil:
		return "ok"
	case ErrValidation:
		return "invalid"
	case ErrNotFound:
		return "not_found"
	case ErrUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

// PublicMessage 返回可以展示给调用方的稳定文案，不包含存储层细节
func PublicMessage(err error) string {
	var opErr *OpError
	errors.As(err, &opErr)

	switch KindOf(err) {
	case nil:
		return ""
	case ErrValidation:
		if opErr != nil && opErr.Reason != "" {
			return "validation failed: " + opErr.Reason
		}
		return "validation failed"
	case ErrNotFound:
		return "not found"
	case ErrUnauthorized:
		if opErr != nil && opErr.Op == opAuthenticate {
			return "invalid email or password"
		}
		return "unauthorized"
	default:
		return "internal error"
	}
}
