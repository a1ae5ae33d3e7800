package model

import "time"

// Video 搜索得到的短视频
type Video struct {
	ID             string    `json:"id"`
	TiktokID       string    `json:"tiktok_id"`
	ThumbnailURL   string    `json:"thumbnail_url"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Views          int64     `json:"views"`
	Likes          int64     `json:"likes"`
	Comments       int64     `json:"comments"`
	Shares         int64     `json:"shares"`
	Duration       int       `json:"duration"`
	DownloadURL    string    `json:"download_url"`
	AuthorUsername string    `json:"author_username,omitempty"`
	FilePath       string    `json:"file_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// VideoDownloadStatus GET /videos/{id}/download-status 的响应
type VideoDownloadStatus struct {
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	FilePath string `json:"file_path,omitempty"`
}

// VideoStats GET /videos/stats/summary 的响应，字段由后端决定
type VideoStats map[string]any
