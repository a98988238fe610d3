package client

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 错误类别，使用 errors.Is 判断
var (
	ErrTransport = errors.New("transport error")
	ErrTimeout   = errors.New("request timed out")
	ErrBusiness  = errors.New("business error")
)

// TransportError 网络/传输错误（连接失败、响应无法解析等）
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// TimeoutError 请求超时，区别于一般传输错误
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: 请求超时（%s）", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// APIError 服务端返回 success:false 的业务错误
type APIError struct {
	Op      string
	Status  int
	Message string
	Details []string
	// Summary 执行失败时已导入的部分数量
	Summary map[string]int
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%s 失败 (HTTP %d)", e.Op, e.Status)
	}
	if len(e.Details) > 0 {
		msg += "：" + strings.Join(e.Details, "；")
	}
	return msg
}

func (e *APIError) Unwrap() error { return ErrBusiness }

// IsNotFound 服务端是否返回 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
