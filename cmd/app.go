package cmd

import (
	"context"
	"time"

	"shorts-studio/app/config"
	"shorts-studio/app/logger"
	"shorts-studio/app/server"
)

// bootstrap 加载配置并组装所有组件，命令结束时调用返回的 cleanup
func bootstrap() (*config.Config, *logger.Logger, *server.Server, func()) {
	cfg := config.Load()

	// 创建日志器
	log := logger.New(cfg.Log)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Close(ctx)
		_ = log.Close()
	}
	return cfg, log, srv, cleanup
}
