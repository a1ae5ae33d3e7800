package model

import "time"

// TaskStatus 面向界面的任务状态
type TaskStatus string

const (
	TaskStatusIdle       TaskStatus = "idle"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsActive 是否仍在后端执行
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusQueued || s == TaskStatusProcessing
}

// TaskState 实时通道推送的后端任务状态
type TaskState string

const (
	TaskStatePending  TaskState = "PENDING"
	TaskStateProgress TaskState = "PROGRESS"
	TaskStateSuccess  TaskState = "SUCCESS"
	TaskStateFailure  TaskState = "FAILURE"
	TaskStateRevoked  TaskState = "REVOKED"
)

// IsTerminal 终态推送之后不会再有更新
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSuccess || s == TaskStateFailure || s == TaskStateRevoked
}

// TaskKind 被跟踪任务的类型
type TaskKind string

const (
	TaskKindSearch     TaskKind = "search"
	TaskKindGeneration TaskKind = "generation"
)

// TaskRecord 本地任务历史
type TaskRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TaskID      string     `gorm:"not null;uniqueIndex;size:100" json:"task_id"`
	Kind        TaskKind   `gorm:"not null;size:20;index" json:"kind"`
	SubjectID   string     `gorm:"not null;size:100;index;comment:搜索或项目ID" json:"subject_id"`
	Status      TaskStatus `gorm:"size:20;default:'queued';index" json:"status"`
	Progress    int        `gorm:"default:0" json:"progress"`
	Message     string     `gorm:"type:text" json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (TaskRecord) TableName() string {
	return "task_records"
}
