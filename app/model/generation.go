package model

// ProgressSnapshot 某个任务当前已知的进度视图。
// status == completed 并不保证 progress == 100，调用方需要同时检查两个字段。
type ProgressSnapshot struct {
	Progress int        `json:"progress"`
	Status   TaskStatus `json:"status"`
	Message  string     `json:"message"`
}

// GenerationUpdate 局部更新，nil 字段保持不变
type GenerationUpdate struct {
	Progress *int
	Status   *TaskStatus
	Message  *string
}

// Progress 构造只包含进度的更新
func Progress(p int) GenerationUpdate {
	return GenerationUpdate{Progress: &p}
}

// WithStatus 设置状态
func (u GenerationUpdate) WithStatus(s TaskStatus) GenerationUpdate {
	u.Status = &s
	return u
}

// WithMessage 设置消息
func (u GenerationUpdate) WithMessage(m string) GenerationUpdate {
	u.Message = &m
	return u
}

// WithProgress 设置进度
func (u GenerationUpdate) WithProgress(p int) GenerationUpdate {
	u.Progress = &p
	return u
}

// Apply 合并到快照上，progress 截断到 [0,100]
func (u GenerationUpdate) Apply(s ProgressSnapshot) ProgressSnapshot {
	if u.Progress != nil {
		s.Progress = clampPercent(*u.Progress)
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.Message != nil {
		s.Message = *u.Message
	}
	return s
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
