package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shorts-studio/app/model"
	"shorts-studio/app/service"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <关键词>",
	Short: "创建搜索并等待结果",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, log, srv, cleanup := bootstrap()
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		search, tracker, err := srv.Workflow().CreateSearch(ctx, args[0], searchLimit)
		if err != nil {
			log.Errorf("创建搜索失败: %v", err)
			return
		}
		fmt.Printf("搜索 %s 已创建，等待结果...\n", search.ID)

		if err := tracker.Wait(ctx); err != nil {
			log.Warnf("等待搜索结果中断: %v", err)
			return
		}

		snap := tracker.Snapshot()
		if snap.Status != model.TaskStatusCompleted {
			fmt.Println(snap.Message)
			return
		}

		videos := srv.Store().Snapshot().Videos
		fmt.Printf("共找到 %d 个视频\n", len(videos))
		for i, v := range videos {
			fmt.Printf("%3d. %-12s 播放 %-10d 点赞 %-8d %s\n", i+1, v.ID, v.Views, v.Likes, v.Title)
		}
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", service.DefaultSearchLimit, "最多返回的视频数量")
	rootCmd.AddCommand(searchCmd)
}
