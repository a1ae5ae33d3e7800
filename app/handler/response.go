package handler

import (
	"errors"
	"net/http"

	"shorts-studio/app/apiclient"
	"shorts-studio/app/reconciler"
	"shorts-studio/app/service"
	"shorts-studio/app/store"

	"github.com/gin-gonic/gin"
)

// ApiResponse 统一的API响应格式
type ApiResponse struct {
	Code    int    `json:"code"`    // 状态码，0表示成功
	Message string `json:"message"` // 响应消息
	Data    any    `json:"data"`    // 响应数据
}

// ResponseHelper 响应辅助结构体
type ResponseHelper struct{}

// NewResponseHelper 创建响应辅助实例
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 创建成功响应
func (r *ResponseHelper) Success(data any, message string) ApiResponse {
	return ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	}
}

// Error 创建错误响应
func (r *ResponseHelper) Error(errorCode int, message string) ApiResponse {
	return ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	}
}

var resp = NewResponseHelper()

func success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, resp.Success(data, message))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, resp.Error(http.StatusBadRequest, message))
}

// fail 按错误类型映射 HTTP 状态码
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	c.JSON(status, resp.Error(status, err.Error()))
}

func statusOf(err error) int {
	var selErr *store.SelectionError
	var reqErr *apiclient.RequestError

	switch {
	case errors.Is(err, service.ErrEmptyKeyword),
		errors.Is(err, service.ErrNoCurrentSearch),
		errors.As(err, &selErr):
		return http.StatusBadRequest
	case errors.Is(err, reconciler.ErrTrackerNotFound),
		errors.Is(err, service.ErrTaskRecordNotFound),
		apiclient.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &reqErr):
		// 后端返回的错误
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
