package apiclient

import (
	"context"
	"net/url"
	"strconv"

	"shorts-studio/app/model"
)

// VideosAPI /videos 接口
type VideosAPI struct {
	c *Client
}

// List 列出视频，params 原样作为查询参数
func (a *VideosAPI) List(ctx context.Context, params map[string]string) ([]model.Video, error) {
	var videos []model.Video
	err := a.c.get(ctx, "/videos", params, &videos)
	return videos, err
}

// Get 获取视频详情
func (a *VideosAPI) Get(ctx context.Context, id string) (*model.Video, error) {
	var video model.Video
	if err := a.c.get(ctx, "/videos/"+url.PathEscape(id), nil, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

// Download 触发单个视频下载
func (a *VideosAPI) Download(ctx context.Context, id string) (map[string]any, error) {
	var result map[string]any
	err := a.c.post(ctx, "/videos/"+url.PathEscape(id)+"/download", nil, nil, &result)
	return result, err
}

// DownloadBatch 批量触发下载
func (a *VideosAPI) DownloadBatch(ctx context.Context, ids []string) (map[string]any, error) {
	var result map[string]any
	err := a.c.post(ctx, "/videos/download-batch", ids, nil, &result)
	return result, err
}

// DownloadStatus 获取下载状态
func (a *VideosAPI) DownloadStatus(ctx context.Context, id string) (*model.VideoDownloadStatus, error) {
	var status model.VideoDownloadStatus
	if err := a.c.get(ctx, "/videos/"+url.PathEscape(id)+"/download-status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Delete 删除视频，deleteFile 为 true 时同时删除本地文件
func (a *VideosAPI) Delete(ctx context.Context, id string, deleteFile bool) error {
	return a.c.delete(ctx, "/videos/"+url.PathEscape(id), map[string]string{
		"delete_file": strconv.FormatBool(deleteFile),
	})
}

// Stats 视频统计
func (a *VideosAPI) Stats(ctx context.Context) (model.VideoStats, error) {
	var stats model.VideoStats
	err := a.c.get(ctx, "/videos/stats/summary", nil, &stats)
	return stats, err
}
