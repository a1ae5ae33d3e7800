// Package reconciler 把轮询和实时推送两路进度合并成唯一的进度快照。
//
// 任务存活期间两路写入按到达顺序覆盖（后写者胜）；任意一路先到达终态后，
// 跟踪结束，之后的写入全部丢弃。
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"shorts-studio/app/config"
	"shorts-studio/app/logger"
	"shorts-studio/app/model"
	"shorts-studio/app/realtime"
)

var (
	ErrPollTimeout      = errors.New("任务跟踪超时")
	ErrTrackerNotFound  = errors.New("没有正在跟踪的任务")
	ErrEmptyTaskID      = errors.New("后端没有返回 task_id")
	errTrackerCancelled = context.Canceled
)

const (
	msgGenerateStart     = "开始生成视频..."
	msgProcessing        = "处理中..."
	msgGenerateCompleted = "视频生成完成！"
	msgGenerateFailed    = "视频生成失败"
	msgGenerateRevoked   = "视频生成已取消"
	msgSearchCompleted   = "搜索完成"
	msgSearchFailed      = "搜索失败"
)

// ProjectAPI 项目相关的后端接口
type ProjectAPI interface {
	Get(ctx context.Context, id string) (*model.Project, error)
	Generate(ctx context.Context, id, musicPath string) (*model.GenerateResult, error)
	Status(ctx context.Context, id string) (*model.ProjectStatus, error)
}

// SearchAPI 搜索相关的后端接口
type SearchAPI interface {
	Get(ctx context.Context, id string) (*model.Search, error)
	Status(ctx context.Context, id string) (*model.SearchStatus, error)
}

// TaskChannel 实时通道，测试中可以替换
type TaskChannel interface {
	Connect()
	SubscribeTask(taskID string, cb realtime.TaskCallback)
	UnsubscribeTask(taskID string)
}

// StateWriter 进度和最终数据写入的目标
type StateWriter interface {
	UpdateGenerationState(u model.GenerationUpdate)
	SetCurrentProject(project *model.Project)
	UpdateSearch(search model.Search)
	SetCurrentSearch(search *model.Search)
	SetVideos(videos []model.Video)
	SetVideosLoading(loading bool)
}

// HistoryRecorder 任务历史，可以为空
type HistoryRecorder interface {
	RecordStart(kind model.TaskKind, taskID, subjectID string)
	RecordFinish(taskID string, snapshot model.ProgressSnapshot)
}

// Reconciler 创建并管理任务跟踪器
type Reconciler struct {
	projects ProjectAPI
	searches SearchAPI
	channel  TaskChannel
	state    StateWriter
	history  HistoryRecorder
	log      *logger.Logger

	interval    time.Duration
	maxDuration time.Duration

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// Option 可选依赖
type Option func(*Reconciler)

// WithHistory 记录任务历史
func WithHistory(h HistoryRecorder) Option {
	return func(r *Reconciler) {
		r.history = h
	}
}

// New 创建 Reconciler
func New(cfg config.PollConfig, projects ProjectAPI, searches SearchAPI, channel TaskChannel, state StateWriter, log *logger.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		projects:    projects,
		searches:    searches,
		channel:     channel,
		state:       state,
		log:         log.Named("reconciler"),
		interval:    cfg.Interval,
		maxDuration: cfg.MaxDuration,
		trackers:    make(map[string]*Tracker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartGeneration 触发生成、订阅推送并开始轮询。
// 触发请求失败时直接返回错误，不创建跟踪器。
func (r *Reconciler) StartGeneration(ctx context.Context, projectID, musicPath string) (*Tracker, error) {
	res, err := r.projects.Generate(ctx, projectID, musicPath)
	if err != nil {
		return nil, err
	}
	if res.TaskID == "" {
		return nil, ErrEmptyTaskID
	}

	t := r.newTracker(model.TaskKindGeneration, res.TaskID, projectID, r.state.UpdateGenerationState)
	t.apply(model.GenerationUpdate{}.WithStatus(model.TaskStatusProcessing).WithMessage(msgGenerateStart))

	t.subscribe(t.handleGenerationPush)
	t.run(r.pollProject, r.refreshProject)

	return t, nil
}

// MonitorProject 跟踪已经在后端运行的生成任务，不再触发生成。
// taskID 为空时只轮询，不订阅推送。
func (r *Reconciler) MonitorProject(projectID, taskID string) *Tracker {
	key := taskID
	if key == "" {
		key = "project:" + projectID
	}

	t := r.newTracker(model.TaskKindGeneration, key, projectID, r.state.UpdateGenerationState)
	if taskID != "" {
		t.subscribe(t.handleGenerationPush)
	}
	t.run(r.pollProject, r.refreshProject)

	return t
}

// TrackSearch 轮询搜索状态直到终态，完成后取回搜索结果写入状态
func (r *Reconciler) TrackSearch(searchID string) *Tracker {
	t := r.newTracker(model.TaskKindSearch, "search:"+searchID, searchID, func(model.GenerationUpdate) {})
	r.state.SetVideosLoading(true)
	t.apply(model.GenerationUpdate{}.WithStatus(model.TaskStatusProcessing).WithMessage(msgProcessing))
	t.run(r.pollSearch, r.finalizeSearch)
	return t
}

// Cancel 停止指定任务的跟踪
func (r *Reconciler) Cancel(taskID string) error {
	r.mu.Lock()
	t, ok := r.trackers[taskID]
	r.mu.Unlock()

	if !ok {
		return ErrTrackerNotFound
	}
	t.Cancel()
	return nil
}

// Tracker 按 ID 查找正在跟踪的任务
func (r *Reconciler) Tracker(taskID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[taskID]
	return t, ok
}

// Active 正在跟踪的任务
func (r *Reconciler) Active() []*Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t)
	}
	return out
}

// Shutdown 取消所有跟踪并等待退出
func (r *Reconciler) Shutdown(ctx context.Context) error {
	active := r.Active()
	for _, t := range active {
		t.Cancel()
	}
	for _, t := range active {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Reconciler) newTracker(kind model.TaskKind, taskID, subjectID string, write func(model.GenerationUpdate)) *Tracker {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if r.maxDuration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.maxDuration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	t := &Tracker{
		kind:      kind,
		taskID:    taskID,
		subjectID: subjectID,
		r:         r,
		write:     write,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		snap:      model.ProgressSnapshot{Status: model.TaskStatusQueued},
	}

	r.mu.Lock()
	// 同一任务重复跟踪时旧的跟踪器让位
	old := r.trackers[taskID]
	r.trackers[taskID] = t
	r.mu.Unlock()

	if old != nil {
		old.replaced()
	}

	if r.history != nil {
		r.history.RecordStart(kind, taskID, subjectID)
	}
	r.log.Infof("开始跟踪任务: %s (%s %s)", taskID, kind, subjectID)
	return t
}

// forget 移除登记，返回 t 是否仍是该任务的当前跟踪器
func (r *Reconciler) forget(t *Tracker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trackers[t.taskID] == t {
		delete(r.trackers, t.taskID)
		return true
	}
	return false
}

// searchActive 是否还有搜索任务在跟踪
func (r *Reconciler) searchActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trackers {
		if t.kind == model.TaskKindSearch {
			return true
		}
	}
	return false
}
