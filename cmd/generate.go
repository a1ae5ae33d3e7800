package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"shorts-studio/app/model"
	"shorts-studio/app/store"

	"github.com/spf13/cobra"
)

var musicPath string

var generateCmd = &cobra.Command{
	Use:   "generate <项目ID>",
	Short: "开始生成视频并显示进度",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, log, srv, cleanup := bootstrap()
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 进度变化时打印一行
		var (
			mu   sync.Mutex
			last model.ProgressSnapshot
		)
		unsubscribe := srv.Store().Subscribe(func(st store.State) {
			mu.Lock()
			defer mu.Unlock()
			if st.Generation == last {
				return
			}
			last = st.Generation
			fmt.Printf("[%3d%%] %-10s %s\n", last.Progress, last.Status, last.Message)
		})
		defer unsubscribe()

		tracker, err := srv.Workflow().Generate(ctx, args[0], musicPath)
		if err != nil {
			log.Errorf("开始生成失败: %v", err)
			return
		}

		if err := tracker.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				// 中断时停止跟踪，后端任务不受影响
				tracker.Cancel()
				log.Warnf("已停止跟踪任务 %s", tracker.TaskID())
				return
			}
			log.Errorf("跟踪任务失败: %v", err)
			return
		}

		if p := tracker.Project(); p != nil {
			fmt.Printf("项目 %s 已完成\n", p.ID)
		}
	},
}

func init() {
	generateCmd.Flags().StringVarP(&musicPath, "music", "m", "", "背景音乐路径（可选）")
	rootCmd.AddCommand(generateCmd)
}
