package handler

import (
	"strconv"

	"shorts-studio/app/logger"
	"shorts-studio/app/service"

	"github.com/gin-gonic/gin"
)

// VideoHandler 视频详情、统计和删除
type VideoHandler struct {
	catalog *service.CatalogService
	log     *logger.Logger
}

// NewVideoHandler 创建视频处理器
func NewVideoHandler(catalog *service.CatalogService, log *logger.Logger) *VideoHandler {
	return &VideoHandler{catalog: catalog, log: log}
}

// GetVideo 获取视频详情
func (h *VideoHandler) GetVideo(c *gin.Context) {
	video, err := h.catalog.Video(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, video, "获取视频成功")
}

// GetStats 获取视频统计
func (h *VideoHandler) GetStats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	success(c, stats, "获取统计成功")
}

// DeleteVideo 删除视频，delete_file=true 时同时删除文件
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	deleteFile, _ := strconv.ParseBool(c.DefaultQuery("delete_file", "false"))

	if err := h.catalog.DeleteVideo(c.Request.Context(), c.Param("id"), deleteFile); err != nil {
		h.log.Warnf("删除视频失败: %v", err)
		fail(c, err)
		return
	}
	success(c, nil, "视频已删除")
}
