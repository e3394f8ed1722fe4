package http

import (
	"context"
	"time"
)

type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 一次请求的参数。
//
// Body 支持 io.Reader、[]byte，其余类型按 JSON 编码；
// Response 为 *[]byte 时写入原始响应体，否则按 JSON 解码。
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
}
