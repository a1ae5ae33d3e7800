// Package apiclient 封装对排行短视频后端 REST 接口的调用。
//
// 所有请求共享同一个 resty 客户端：基础地址和超时来自配置，
// 不做重试和缓存。成功时把响应体直接解码到调用方给出的结果上，
// 非 2xx 或传输失败统一返回 *RequestError。
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"shorts-studio/app/config"
	"shorts-studio/app/logger"

	"resty.dev/v3"
)

// Client 后端接口客户端
type Client struct {
	http *resty.Client
	log  *logger.Logger

	Search   *SearchAPI
	Videos   *VideosAPI
	Projects *ProjectsAPI
}

// New 创建接口客户端
func New(cfg config.APIConfig, log *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(log.Named("resty"))

	c := &Client{http: rc, log: log}
	c.Search = &SearchAPI{c: c}
	c.Videos = &VideosAPI{c: c}
	c.Projects = &ProjectsAPI{c: c}
	return c
}

// Close 释放底层连接
func (c *Client) Close() error {
	return c.http.Close()
}

// Request 发送请求。body 和 params 可为 nil；result 非 nil 时把成功响应体解码进去。
func (c *Client) Request(ctx context.Context, method, path string, body any, params map[string]string, result any) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{})

	if body != nil {
		req.SetBody(body)
	}
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil && (resp == nil || resp.StatusCode() == 0) {
		c.log.Debugf("请求失败: %s %s: %v", method, path, err)
		return &RequestError{Method: method, Path: path, Message: err.Error(), Err: err}
	}

	// 收到了响应但解码失败（例如错误体不是合法 JSON），按状态码处理并保留原始错误
	if resp.IsError() || (err != nil && !resp.IsSuccess()) {
		reqErr := &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("request failed with status code %d", resp.StatusCode()),
			Err:        err,
		}
		if eb, ok := resp.Error().(*errorBody); ok && eb != nil {
			if detail := eb.message(); detail != "" {
				reqErr.Message = detail
			}
		}
		c.log.Debugf("接口返回错误: %s %s -> %d: %s", method, path, reqErr.StatusCode, reqErr.Message)
		return reqErr
	}

	if !resp.IsSuccess() {
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("unexpected status code %d", resp.StatusCode()),
		}
	}

	// 2xx 但响应体无法解码到 result
	if err != nil {
		c.log.Debugf("解码响应失败: %s %s: %v", method, path, err)
		return &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode(), Message: err.Error(), Err: err}
	}

	return nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	return c.Request(ctx, http.MethodGet, path, nil, params, result)
}

func (c *Client) post(ctx context.Context, path string, body any, params map[string]string, result any) error {
	return c.Request(ctx, http.MethodPost, path, body, params, result)
}

func (c *Client) put(ctx context.Context, path string, body any, result any) error {
	return c.Request(ctx, http.MethodPut, path, body, nil, result)
}

func (c *Client) delete(ctx context.Context, path string, params map[string]string) error {
	return c.Request(ctx, http.MethodDelete, path, nil, params, nil)
}

// IsNotFound 判断是否为 404
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}
