package errs

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind 错误类别。业务代码只区分类别，由传输层统一映射为 HTTP / gRPC 状态码。
type Kind int

const (
	KindInternal Kind = iota // 未分类 / 内部错误
	KindInvalidArgument      // 入参不合法（空 legs、非正 speed 等）
	KindNotFound             // 资源不存在
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error 携带类别、出错的操作名和可选的底层错误。
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建一个带类别的错误。
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf 同 New，带格式化消息。
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并标注类别。err 为 nil 时返回 nil。
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 取错误链上最近的 *Error 的类别；非本包错误按 internal 处理。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind 判断错误是否属于指定类别。
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPStatus 将错误映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode 将错误映射为 gRPC code。
func GRPCCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	switch KindOf(err) {
	case KindInvalidArgument:
		return codes.InvalidArgument
	case KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
