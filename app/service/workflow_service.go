package service

import (
	"context"
	"fmt"
	"strings"

	"shorts-studio/app/apiclient"
	"shorts-studio/app/logger"
	"shorts-studio/app/model"
	"shorts-studio/app/reconciler"
	"shorts-studio/app/store"
)

// DefaultSearchLimit 未指定数量时的搜索条数
const DefaultSearchLimit = 30

// WorkflowService 串联 搜索 → 选择 → 建项目 → 生成 的用户流程
type WorkflowService struct {
	api   *apiclient.Client
	store *store.Store
	rec   *reconciler.Reconciler
	log   *logger.Logger
}

// NewWorkflowService 创建流程服务
func NewWorkflowService(api *apiclient.Client, st *store.Store, rec *reconciler.Reconciler, log *logger.Logger) *WorkflowService {
	return &WorkflowService{
		api:   api,
		store: st,
		rec:   rec,
		log:   log.Named("workflow"),
	}
}

// CreateSearch 创建搜索并开始跟踪搜索任务
func (s *WorkflowService) CreateSearch(ctx context.Context, keyword string, limit int) (*model.Search, *reconciler.Tracker, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil, ErrEmptyKeyword
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.store.SetSearchLoading(true)
	defer s.store.SetSearchLoading(false)

	search, err := s.api.Search.Create(ctx, keyword, limit)
	if err != nil {
		return nil, nil, err
	}

	s.store.AddSearch(*search)
	s.store.SetCurrentSearch(search)
	s.store.ClearSelectedVideos()
	s.log.Infof("已创建搜索: %s (%s, %d)", search.ID, keyword, limit)

	return search, s.rec.TrackSearch(search.ID), nil
}

// CreateProjectFromSelection 用当前选择的视频创建项目，添加视频并开始批量下载。
// 成功后清空选择集合并把新项目设为当前项目。
func (s *WorkflowService) CreateProjectFromSelection(ctx context.Context) (*model.Project, error) {
	if err := s.store.ValidateSelection(); err != nil {
		return nil, err
	}

	current := s.store.Snapshot().CurrentSearch
	if current == nil {
		return nil, ErrNoCurrentSearch
	}

	s.store.SetProjectLoading(true)
	defer s.store.SetProjectLoading(false)

	// 1. 创建项目
	project, err := s.api.Projects.Create(ctx,
		fmt.Sprintf("Ranking - %s", current.Keyword),
		fmt.Sprintf("%s 排行短视频", current.Keyword),
	)
	if err != nil {
		return nil, fmt.Errorf("创建项目失败: %w", err)
	}

	// 2. 添加选中的视频
	selected := s.store.SelectedVideos()
	videoIDs := make([]string, len(selected))
	for i, v := range selected {
		videoIDs[i] = v.ID
	}
	if _, err := s.api.Projects.AddVideos(ctx, project.ID, videoIDs); err != nil {
		return nil, fmt.Errorf("添加视频失败: %w", err)
	}

	// 3. 开始下载视频
	if _, err := s.api.Videos.DownloadBatch(ctx, videoIDs); err != nil {
		return nil, fmt.Errorf("启动视频下载失败: %w", err)
	}

	project.Videos = selected
	s.store.ClearSelectedVideos()
	s.store.AddProject(*project)
	s.store.SetCurrentProject(project)
	s.log.Infof("已创建项目: %s (%d 个视频)", project.ID, len(videoIDs))

	return project, nil
}

// LoadProject 加载项目；生成进行中时恢复跟踪，已完成时直接写入完成状态
func (s *WorkflowService) LoadProject(ctx context.Context, id string) (*model.Project, *reconciler.Tracker, error) {
	s.store.SetProjectLoading(true)
	defer s.store.SetProjectLoading(false)

	project, err := s.api.Projects.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	s.store.SetCurrentProject(project)

	var tracker *reconciler.Tracker
	switch {
	case project.Status.IsActive():
		tracker = s.rec.MonitorProject(project.ID, project.TaskID)
	case project.Status == model.TaskStatusCompleted:
		s.store.UpdateGenerationState(model.Progress(100).
			WithStatus(model.TaskStatusCompleted).
			WithMessage("视频生成完成！"))
	}

	return project, tracker, nil
}

// Generate 重置进度并开始生成；触发失败时把错误写入进度快照
func (s *WorkflowService) Generate(ctx context.Context, projectID, musicPath string) (*reconciler.Tracker, error) {
	s.store.ResetGeneration()

	tracker, err := s.rec.StartGeneration(ctx, projectID, musicPath)
	if err != nil {
		s.store.UpdateGenerationState(model.GenerationUpdate{}.
			WithStatus(model.TaskStatusFailed).
			WithMessage(err.Error()))
		return nil, err
	}
	return tracker, nil
}

// CancelTracking 视图销毁时停止跟踪
func (s *WorkflowService) CancelTracking(taskID string) error {
	return s.rec.Cancel(taskID)
}

// ActiveTasks 正在跟踪的任务
func (s *WorkflowService) ActiveTasks() []*reconciler.Tracker {
	return s.rec.Active()
}
