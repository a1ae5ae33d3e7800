package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"shorts-studio/app/model"
	"shorts-studio/app/realtime"
)

// refreshTimeout 终态之后取回最终数据的超时
const refreshTimeout = 30 * time.Second

// Tracker 单个任务的跟踪句柄。轮询协程退出后 Done 关闭。
type Tracker struct {
	kind      model.TaskKind
	taskID    string
	subjectID string
	r         *Reconciler
	write     func(model.GenerationUpdate)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// wmu 串行化状态写入，写入时会同步调用状态监听者，所以不能在 mu 内进行
	wmu sync.Mutex

	mu         sync.Mutex
	snap       model.ProgressSnapshot
	finished   bool
	subscribed bool
	err        error
	project    *model.Project
	search     *model.Search
}

// TaskID 任务标识；只轮询的跟踪器使用本地生成的键
func (t *Tracker) TaskID() string { return t.taskID }

// SubjectID 搜索 ID 或项目 ID
func (t *Tracker) SubjectID() string { return t.subjectID }

// Kind 任务类型
func (t *Tracker) Kind() model.TaskKind { return t.kind }

// Done 跟踪结束（包括最终数据刷新）后关闭
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Snapshot 当前进度
func (t *Tracker) Snapshot() model.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Err 正常到达终态（包括 failed）时为 nil；
// 取消时为 context.Canceled，超过最长跟踪时间为 ErrPollTimeout
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Project 生成完成后取回的项目
func (t *Tracker) Project() *model.Project {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.project
}

// Search 搜索完成后取回的搜索结果
func (t *Tracker) Search() *model.Search {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.search
}

// Wait 阻塞到跟踪结束
func (t *Tracker) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel 停止轮询并取消推送订阅，可重复调用
func (t *Tracker) Cancel() {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()

	t.finish(errTrackerCancelled)
}

// apply 写入进度；跟踪结束后的写入被丢弃。返回是否已到达终态。
func (t *Tracker) apply(u model.GenerationUpdate) bool {
	t.wmu.Lock()

	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		t.wmu.Unlock()
		return true
	}
	t.snap = u.Apply(t.snap)
	terminal := t.snap.Status.IsTerminal()
	if terminal {
		t.finished = true
	}
	t.mu.Unlock()

	// 终态写入持有 wmu 期间，后到的写入会在上面被丢弃
	t.write(u)
	t.wmu.Unlock()

	if terminal {
		t.finish(nil)
	}
	return terminal
}

// finish 只执行一次：记录结果、停止轮询、取消订阅
func (t *Tracker) finish(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		snap := t.snap
		subscribed := t.subscribed
		t.mu.Unlock()

		t.cancel()

		// 被同一任务的新跟踪器替换时，订阅已经属于新跟踪器
		if t.r.forget(t) && subscribed {
			t.r.channel.UnsubscribeTask(t.taskID)
		}

		if t.r.history != nil {
			t.r.history.RecordFinish(t.taskID, snap)
		}

		switch {
		case err == nil:
			t.r.log.Infof("任务跟踪结束: %s, 状态 %s", t.taskID, snap.Status)
		case errors.Is(err, ErrPollTimeout):
			t.r.log.Warnf("任务跟踪超时: %s, 最后状态 %s", t.taskID, snap.Status)
		default:
			t.r.log.Infof("任务跟踪已取消: %s", t.taskID)
		}
	})
}

// replaced 同一任务开始了新的跟踪，旧跟踪器停止且不取消订阅
func (t *Tracker) replaced() {
	t.mu.Lock()
	t.finished = true
	t.subscribed = false
	t.mu.Unlock()

	t.finish(errTrackerCancelled)
}

func (t *Tracker) subscribe(cb realtime.TaskCallback) {
	t.mu.Lock()
	t.subscribed = true
	t.mu.Unlock()

	t.r.channel.Connect()
	t.r.channel.SubscribeTask(t.taskID, cb)
}

// run 启动轮询协程；轮询结束后执行收尾并关闭 Done
func (t *Tracker) run(poll func(*Tracker), finalize func(ctx context.Context, t *Tracker)) {
	go func() {
		defer close(t.done)

		poll(t)

		var err error
		switch ctxErr := t.ctx.Err(); {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			err = ErrPollTimeout
		case ctxErr != nil:
			err = errTrackerCancelled
		}
		t.mu.Lock()
		t.finished = true
		t.mu.Unlock()
		t.finish(err)

		if finalize != nil {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			finalize(ctx, t)
		}
	}()
}

// sleep 等待下一次轮询，跟踪结束时返回 false
func (t *Tracker) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-t.ctx.Done():
		return false
	}
}

func (t *Tracker) completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err == nil && t.snap.Status == model.TaskStatusCompleted
}
