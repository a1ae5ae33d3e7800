package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shorts-studio/app/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动本地视图 API",
	Run: func(cmd *cobra.Command, args []string) {
		_, log, srv, _ := bootstrap()
		defer log.Close()

		// 配置文件变化时只热更新日志级别，其余配置需要重启
		config.Watch(viper.GetViper(), func(cfg *config.Config, err error) {
			if err != nil {
				log.Warnf("配置重新加载失败: %v", err)
				return
			}
			log.SetLevel(cfg.Log.Level)
			log.Infof("配置已更新，日志级别: %s", cfg.Log.Level)
		})

		// 在协程中启动服务器
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("启动服务器失败: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("收到关闭信号，正在关闭服务器...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("服务器关闭失败: %v", err)
		}
		log.Info("服务器已退出")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
