package service

import (
	"errors"
	"time"

	"shorts-studio/app/config"
	"shorts-studio/app/logger"
	"shorts-studio/app/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskHistoryService 本地任务历史，记录每个被跟踪任务的开始和结束
type TaskHistoryService struct {
	db  *gorm.DB
	cfg config.HistoryConfig
	log *logger.Logger
}

// NewTaskHistoryService 创建任务历史服务
func NewTaskHistoryService(db *gorm.DB, cfg config.HistoryConfig, log *logger.Logger) *TaskHistoryService {
	return &TaskHistoryService{
		db:  db,
		cfg: cfg,
		log: log.Named("history"),
	}
}

// RecordStart 记录任务开始；同一任务再次跟踪时重置记录
func (s *TaskHistoryService) RecordStart(kind model.TaskKind, taskID, subjectID string) {
	record := model.TaskRecord{
		TaskID:    taskID,
		Kind:      kind,
		SubjectID: subjectID,
		Status:    model.TaskStatusQueued,
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"kind":         kind,
			"subject_id":   subjectID,
			"status":       model.TaskStatusQueued,
			"progress":     0,
			"message":      "",
			"completed_at": nil,
			"updated_at":   time.Now(),
		}),
	}).Create(&record).Error
	if err != nil {
		s.log.Errorf("记录任务开始失败: %s: %v", taskID, err)
	}
}

// RecordFinish 记录任务结束时的进度快照
func (s *TaskHistoryService) RecordFinish(taskID string, snapshot model.ProgressSnapshot) {
	updates := map[string]any{
		"status":   snapshot.Status,
		"progress": snapshot.Progress,
		"message":  snapshot.Message,
	}
	if snapshot.Status.IsTerminal() {
		updates["completed_at"] = time.Now()
	}

	result := s.db.Model(&model.TaskRecord{}).Where("task_id = ?", taskID).Updates(updates)
	if result.Error != nil {
		s.log.Errorf("记录任务结束失败: %s: %v", taskID, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		s.log.Warnf("任务历史不存在: %s", taskID)
	}
}

// Get 按任务 ID 查询
func (s *TaskHistoryService) Get(taskID string) (*model.TaskRecord, error) {
	var record model.TaskRecord
	if err := s.db.Where("task_id = ?", taskID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Recent 最近的任务记录，kind 为空时不过滤
func (s *TaskHistoryService) Recent(kind model.TaskKind, limit int) ([]model.TaskRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.db.Order("created_at DESC, id DESC").Limit(limit)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var records []model.TaskRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Cleanup 清理过期的任务记录，返回删除条数
func (s *TaskHistoryService) Cleanup() int64 {
	var total int64

	// 清理已完成的任务
	cutoff := time.Now().AddDate(0, 0, -s.cfg.CompletedRetentionDays)
	result := s.db.Where("status = ? AND completed_at < ?", model.TaskStatusCompleted, cutoff).Delete(&model.TaskRecord{})
	if result.Error != nil {
		s.log.Errorf("清理已完成任务失败: %v", result.Error)
		return total
	}
	if result.RowsAffected > 0 {
		s.log.Infof("清理了 %d 个已完成的任务（超过%d天）", result.RowsAffected, s.cfg.CompletedRetentionDays)
	}
	total += result.RowsAffected

	// 清理失败的任务
	failedCutoff := time.Now().AddDate(0, 0, -s.cfg.FailedRetentionDays)
	result = s.db.Where("status = ? AND completed_at < ?", model.TaskStatusFailed, failedCutoff).Delete(&model.TaskRecord{})
	if result.Error != nil {
		s.log.Errorf("清理失败任务失败: %v", result.Error)
		return total
	}
	if result.RowsAffected > 0 {
		s.log.Infof("清理了 %d 个失败的任务（超过%d天）", result.RowsAffected, s.cfg.FailedRetentionDays)
	}
	return total + result.RowsAffected
}
