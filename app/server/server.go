package server

import (
	"context"
	"net/http"

	"shorts-studio/app/apiclient"
	"shorts-studio/app/config"
	"shorts-studio/app/database"
	"shorts-studio/app/handler"
	"shorts-studio/app/logger"
	"shorts-studio/app/realtime"
	"shorts-studio/app/reconciler"
	"shorts-studio/app/service"
	"shorts-studio/app/store"

	"github.com/gin-gonic/gin"
)

// Server 组装所有组件，并提供本地视图 API
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server

	api        *apiclient.Client
	channel    *realtime.Channel
	store      *store.Store
	reconciler *reconciler.Reconciler
	history    *service.TaskHistoryService
	workflow   *service.WorkflowService
	catalog    *service.CatalogService
	scheduler  *service.Scheduler
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	// 初始化数据库
	if err := database.Init(cfg.Database, log); err != nil {
		return nil, err
	}

	api := apiclient.New(cfg.API, log)
	channel := realtime.New(cfg.WS, log)
	st := store.New(cfg.Selection)
	history := service.NewTaskHistoryService(database.GetDB(), cfg.History, log)
	rec := reconciler.New(cfg.Poll, api.Projects, api.Search, channel, st, log, reconciler.WithHistory(history))

	scheduler, err := service.NewScheduler(cfg.WS.PingInterval, channel, history, log)
	if err != nil {
		return nil, err
	}

	router := gin.Default()

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:     cfg,
		Logger:     log,
		api:        api,
		channel:    channel,
		store:      st,
		reconciler: rec,
		history:    history,
		workflow:   service.NewWorkflowService(api, st, rec, log),
		catalog:    service.NewCatalogService(api.Videos, st, cfg.Cache, log),
		scheduler:  scheduler,
	}

	// 设置路由
	s.setupRoutes()

	return s, nil
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Workflow 流程服务，命令行直接使用
func (s *Server) Workflow() *service.WorkflowService {
	return s.workflow
}

// Store 应用状态
func (s *Server) Store() *store.Store {
	return s.store
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	s.channel.Connect()
	s.scheduler.Start()

	return s.http.ListenAndServe()
}

// Shutdown 停止 HTTP 服务并释放所有组件
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.Close(ctx)
	return err
}

// Close 停止跟踪和周期任务，断开实时通道，关闭数据库
func (s *Server) Close(ctx context.Context) {
	if err := s.reconciler.Shutdown(ctx); err != nil {
		s.Logger.Warnf("等待任务跟踪退出超时: %v", err)
	}

	// 停止周期任务
	s.scheduler.Stop()
	s.channel.Disconnect()

	if err := s.api.Close(); err != nil {
		s.Logger.Warnf("关闭接口客户端失败: %v", err)
	}

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	// 创建处理器实例
	workflowHandler := handler.NewWorkflowHandler(s.workflow, s.history, s.store, s.Logger)
	videoHandler := handler.NewVideoHandler(s.catalog, s.Logger)

	// API路由组
	api := s.gin.Group("/api")

	// 状态
	api.GET("/state", workflowHandler.GetState)
	api.GET("/generation", workflowHandler.GetGeneration)

	// 搜索与选择
	api.POST("/search", workflowHandler.CreateSearch)
	selection := api.Group("/selection")
	{
		selection.POST("/toggle", workflowHandler.ToggleSelection)
		selection.POST("/reorder", workflowHandler.ReorderSelection)
		selection.DELETE("", workflowHandler.ClearSelection)
	}

	// 项目与生成
	projects := api.Group("/projects")
	{
		projects.POST("", workflowHandler.CreateProject)
		projects.GET("/:id", workflowHandler.GetProject)
		projects.POST("/:id/generate", workflowHandler.Generate)
	}

	// 任务跟踪
	tasks := api.Group("/tasks")
	{
		tasks.GET("", workflowHandler.ListTasks)
		tasks.DELETE("/:taskId", workflowHandler.CancelTask)
	}

	// 视频
	videos := api.Group("/videos")
	{
		videos.GET("/stats", videoHandler.GetStats)
		videos.GET("/:id", videoHandler.GetVideo)
		videos.DELETE("/:id", videoHandler.DeleteVideo)
	}
}
