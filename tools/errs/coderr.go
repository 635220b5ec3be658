package errs

import (
	stderr "errors"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// 错误码分段：
//   1xxx 校验类（参数/协议/权限），只回给调用方，不会广播
//   2xxx 资源不存在（房间/消息/用户缺失或已软删）
//   3xxx 存储/下游瞬时错误（记日志、中止本次操作，核心不重试）
const (
	codeValidation = 1000
	codeNotFound   = 2000
	codeTransient  = 3000
	codeSpan       = 1000
)

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail 返回附加说明的副本，原错误保持可比
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Is 支持 errors.Is(err, ErrXxx)：按错误码比较
func (e *CodeError) Is(target error) bool {
	var ce *CodeError
	if !stderr.As(target, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Wrap 给底层错误补上下文（带堆栈）
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// CodeOf 取出错误码；不是 CodeError 时按瞬时错误处理
func CodeOf(err error) int {
	var ce *CodeError
	if stderr.As(err, &ce) {
		return ce.Code
	}
	return ErrStorage.Code
}

func inRange(err error, base int) bool {
	c := CodeOf(err)
	return c >= base && c < base+codeSpan
}

// IsValidation 校验类错误
func IsValidation(err error) bool { return err != nil && inRange(err, codeValidation) }

// IsNotFound 资源不存在
func IsNotFound(err error) bool { return err != nil && inRange(err, codeNotFound) }

// IsTransient 瞬时存储错误
func IsTransient(err error) bool { return err != nil && inRange(err, codeTransient) }

// ===== 预定义错误 =====

var (
	// 校验类
	ErrArgs          = NewCodeError(1001, "invalid argument")
	ErrEventUnknown  = NewCodeError(1002, "unknown event")
	ErrPayload       = NewCodeError(1003, "malformed event payload")
	ErrEmptyBody     = NewCodeError(1004, "message requires text, location or attachment")
	ErrNotAuthorized = NewCodeError(1101, "connection not authenticated")
	ErrTokenInvalid  = NewCodeError(1102, "token invalid")
	ErrTokenExpired  = NewCodeError(1103, "token expired")
	ErrAlreadyAuthed = NewCodeError(1104, "connection already authenticated")
	ErrSingleRoom    = NewCodeError(1201, "single room membership is fixed")
	ErrAlreadyMember = NewCodeError(1202, "user already a room member")
	ErrRoomMembers   = NewCodeError(1203, "room requires at least two members")

	// 资源不存在
	ErrRoomNotFound    = NewCodeError(2001, "room not found")
	ErrRoomDeleted     = NewCodeError(2002, "room deleted")
	ErrMessageNotFound = NewCodeError(2003, "message not found")
	ErrUserNotFound    = NewCodeError(2004, "user not found")
	ErrMemberNotFound  = NewCodeError(2005, "room member not found")

	// 存储/下游
	ErrStorage = NewCodeError(3001, "storage unavailable")
)
