package apiclient

import "fmt"

// RequestError 统一的请求错误。Message 优先取服务端结构化错误里的 detail，
// 否则为传输层错误文本。
type RequestError struct {
	Method     string
	Path       string
	StatusCode int // 传输失败时为 0
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Describe 带上请求信息，便于日志
func (e *RequestError) Describe() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s (%d): %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// errorBody FastAPI 风格的错误响应 {"detail": ...}
type errorBody struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
}

func (b *errorBody) message() string {
	if s, ok := b.Detail.(string); ok && s != "" {
		return s
	}
	// 校验错误时 detail 是数组，取第一条的 msg
	if list, ok := b.Detail.([]any); ok && len(list) > 0 {
		if item, ok := list[0].(map[string]any); ok {
			if msg, ok := item["msg"].(string); ok {
				return msg
			}
		}
	}
	return b.Message
}
