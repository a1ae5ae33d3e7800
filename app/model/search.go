package model

import "time"

// Search 关键词搜索记录
type Search struct {
	ID           string     `json:"id"`
	Keyword      string     `json:"keyword"`
	Status       TaskStatus `json:"status"`
	TotalFound   int        `json:"total_found"`
	TaskID       string     `json:"task_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Videos       []Video    `json:"videos,omitempty"`
}

// SearchCreate 创建搜索请求
type SearchCreate struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit"`
}

// SearchStatus GET /search/{id}/status 的响应
type SearchStatus struct {
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
