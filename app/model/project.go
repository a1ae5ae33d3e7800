package model

import (
	"encoding/json"
	"time"
)

// Project 排行短视频项目
type Project struct {
	ID             string         `json:"id"`
	Title          string         `json:"title,omitempty"`
	Name           string         `json:"name,omitempty"`
	Description    string         `json:"description,omitempty"`
	Status         TaskStatus     `json:"status"`
	TaskID         string         `json:"task_id,omitempty"`
	RenderProgress int            `json:"render_progress,omitempty"`
	Videos         []Video        `json:"videos,omitempty"`
	Settings       map[string]any `json:"settings,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

// ProjectCreate 创建项目请求
type ProjectCreate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GenerateResult POST /projects/{id}/generate 的响应
type GenerateResult struct {
	ProjectID string     `json:"project_id"`
	TaskID    string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	Message   string     `json:"message"`
}

// TaskInfo 后端任务附带的进度信息。
// 成功时后端放的是结果数据，失败时可能是字符串，这里只提取能识别的字段。
type TaskInfo struct {
	Status  string         `json:"status,omitempty"`
	Percent *int           `json:"percent,omitempty"`
	Raw     map[string]any `json:"-"`
}

func (i *TaskInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		// 非对象负载直接忽略
		*i = TaskInfo{}
		return nil
	}

	*i = TaskInfo{Raw: raw}
	if s, ok := raw["status"].(string); ok {
		i.Status = s
	}
	if n, ok := raw["percent"].(float64); ok {
		p := int(n)
		i.Percent = &p
	}
	return nil
}

// ProjectStatus GET /projects/{id}/status 的响应
type ProjectStatus struct {
	ProjectID      string     `json:"project_id"`
	Status         TaskStatus `json:"status"`
	TaskState      TaskState  `json:"task_state,omitempty"`
	TaskInfo       *TaskInfo  `json:"task_info,omitempty"`
	RenderProgress int        `json:"render_progress"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}
