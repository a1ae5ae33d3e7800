package service

import (
	"fmt"
	"time"

	"shorts-studio/app/logger"

	"github.com/robfig/cron/v3"
)

// Pinger 应用层心跳
type Pinger interface {
	Ping()
}

// HistoryCleaner 过期任务记录清理
type HistoryCleaner interface {
	Cleanup() int64
}

// Scheduler 周期任务：实时通道心跳、任务历史清理
type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger
}

// NewScheduler 注册周期任务，pingInterval 为 0 时不发送心跳
func NewScheduler(pingInterval time.Duration, pinger Pinger, cleaner HistoryCleaner, log *logger.Logger) (*Scheduler, error) {
	log = log.Named("scheduler")
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log})))

	if pingInterval > 0 && pinger != nil {
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", pingInterval), pinger.Ping); err != nil {
			return nil, fmt.Errorf("注册心跳任务失败: %w", err)
		}
	}

	if cleaner != nil {
		_, err := c.AddFunc("@daily", func() {
			if n := cleaner.Cleanup(); n > 0 {
				log.Infof("任务历史清理完成，共删除 %d 条", n)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("注册清理任务失败: %w", err)
		}
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("周期任务已启动，共 %d 个", len(s.cron.Entries()))
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries 已注册的任务数
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
