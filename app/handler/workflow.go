package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"shorts-studio/app/logger"
	"shorts-studio/app/model"
	"shorts-studio/app/reconciler"
	"shorts-studio/app/service"
	"shorts-studio/app/store"

	"github.com/gin-gonic/gin"
)

// WorkflowHandler 状态读取和流程操作
type WorkflowHandler struct {
	workflow *service.WorkflowService
	history  *service.TaskHistoryService
	store    *store.Store
	log      *logger.Logger
}

// NewWorkflowHandler 创建流程处理器
func NewWorkflowHandler(workflow *service.WorkflowService, history *service.TaskHistoryService, st *store.Store, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflow: workflow,
		history:  history,
		store:    st,
		log:      log,
	}
}

// CreateSearchRequest 创建搜索请求
type CreateSearchRequest struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit"`
}

// ToggleSelectionRequest 切换视频选择
type ToggleSelectionRequest struct {
	Video model.Video `json:"video"`
}

// ReorderSelectionRequest 调整选择顺序
type ReorderSelectionRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

// GenerateRequest 生成请求，music_path 可选
type GenerateRequest struct {
	MusicPath string `json:"music_path"`
}

// TrackerResponse 跟踪中任务的信息
type TrackerResponse struct {
	TaskID    string                 `json:"task_id"`
	Kind      model.TaskKind         `json:"kind"`
	SubjectID string                 `json:"subject_id"`
	Snapshot  model.ProgressSnapshot `json:"snapshot"`
}

func trackerResponse(t *reconciler.Tracker) *TrackerResponse {
	if t == nil {
		return nil
	}
	return &TrackerResponse{
		TaskID:    t.TaskID(),
		Kind:      t.Kind(),
		SubjectID: t.SubjectID(),
		Snapshot:  t.Snapshot(),
	}
}

// GetState 获取完整状态快照
func (h *WorkflowHandler) GetState(c *gin.Context) {
	success(c, h.store.Snapshot(), "获取状态成功")
}

// GetGeneration 获取生成进度
func (h *WorkflowHandler) GetGeneration(c *gin.Context) {
	success(c, h.store.Generation(), "获取生成进度成功")
}

// CreateSearch 创建搜索
func (h *WorkflowHandler) CreateSearch(c *gin.Context) {
	var req CreateSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	search, tracker, err := h.workflow.CreateSearch(c.Request.Context(), req.Keyword, req.Limit)
	if err != nil {
		h.log.Warnf("创建搜索失败: %v", err)
		fail(c, err)
		return
	}

	success(c, gin.H{
		"search":  search,
		"tracker": trackerResponse(tracker),
	}, "搜索已创建")
}

// ToggleSelection 切换视频选择，达到上限时静默忽略
func (h *WorkflowHandler) ToggleSelection(c *gin.Context) {
	var req ToggleSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Video.ID == "" {
		badRequest(c, "视频ID不能为空")
		return
	}

	h.store.ToggleVideoSelection(req.Video)
	success(c, h.store.SelectedVideos(), "success")
}

// ReorderSelection 调整选择顺序
func (h *WorkflowHandler) ReorderSelection(c *gin.Context) {
	var req ReorderSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	h.store.ReorderSelectedVideos(*req.From, *req.To)
	success(c, h.store.SelectedVideos(), "success")
}

// ClearSelection 清空选择
func (h *WorkflowHandler) ClearSelection(c *gin.Context) {
	h.store.ClearSelectedVideos()
	success(c, []model.Video{}, "已清空选择")
}

// CreateProject 用当前选择创建项目
func (h *WorkflowHandler) CreateProject(c *gin.Context) {
	project, err := h.workflow.CreateProjectFromSelection(c.Request.Context())
	if err != nil {
		h.log.Warnf("创建项目失败: %v", err)
		fail(c, err)
		return
	}
	success(c, project, "项目已创建")
}

// GetProject 加载项目，生成中时恢复跟踪
func (h *WorkflowHandler) GetProject(c *gin.Context) {
	project, tracker, err := h.workflow.LoadProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	success(c, gin.H{
		"project": project,
		"tracker": trackerResponse(tracker),
	}, "获取项目成功")
}

// Generate 开始生成
func (h *WorkflowHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	// 请求体可以为空（包括分块传输的空请求体）
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}
	}

	tracker, err := h.workflow.Generate(c.Request.Context(), c.Param("id"), req.MusicPath)
	if err != nil {
		h.log.Warnf("开始生成失败: %v", err)
		fail(c, err)
		return
	}
	success(c, trackerResponse(tracker), "已开始生成")
}

// CancelTask 停止跟踪任务
func (h *WorkflowHandler) CancelTask(c *gin.Context) {
	if err := h.workflow.CancelTracking(c.Param("taskId")); err != nil {
		fail(c, err)
		return
	}
	success(c, nil, "已停止跟踪")
}

// ListTasks 正在跟踪的任务和最近的任务历史
func (h *WorkflowHandler) ListTasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.history.Recent(model.TaskKind(c.Query("kind")), limit)
	if err != nil {
		h.log.Errorf("查询任务历史失败: %v", err)
		fail(c, err)
		return
	}

	active := h.workflow.ActiveTasks()
	trackers := make([]*TrackerResponse, 0, len(active))
	for _, t := range active {
		trackers = append(trackers, trackerResponse(t))
	}

	success(c, gin.H{
		"active":  trackers,
		"history": records,
	}, "获取任务列表成功")
}
