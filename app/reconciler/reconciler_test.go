package reconciler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shorts-studio/app/config"
	"shorts-studio/app/logger"
	"shorts-studio/app/model"
	"shorts-studio/app/realtime"
	"shorts-studio/app/reconciler"
	"shorts-studio/app/store"
)

const waitFor = 3 * time.Second
const tick = 5 * time.Millisecond

type projectStatusResp struct {
	status *model.ProjectStatus
	err    error
}

// fakeProjects 每次 Status 调用取出测试投递的一条响应
type fakeProjects struct {
	statuses chan projectStatusResp
	genRes   *model.GenerateResult
	genErr   error
	project  *model.Project

	mu   sync.Mutex
	gets int
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{
		statuses: make(chan projectStatusResp, 16),
		genRes:   &model.GenerateResult{ProjectID: "p1", TaskID: "t1", Status: model.TaskStatusQueued},
		project:  &model.Project{ID: "p1", Status: model.TaskStatusCompleted},
	}
}

func (f *fakeProjects) Get(ctx context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	return f.project, nil
}

func (f *fakeProjects) Generate(ctx context.Context, id, musicPath string) (*model.GenerateResult, error) {
	return f.genRes, f.genErr
}

func (f *fakeProjects) Status(ctx context.Context, id string) (*model.ProjectStatus, error) {
	select {
	case resp := <-f.statuses:
		return resp.status, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeProjects) feed(status model.TaskStatus, progress int) {
	f.statuses <- projectStatusResp{status: &model.ProjectStatus{ProjectID: "p1", Status: status, RenderProgress: progress}}
}

func (f *fakeProjects) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type searchStatusResp struct {
	status *model.SearchStatus
	err    error
}

// fakeSearches 默认所有搜索共用 statuses；byID 中登记的搜索使用各自的队列
type fakeSearches struct {
	statuses chan searchStatusResp
	byID     map[string]chan searchStatusResp
	result   *model.Search
}

func (f *fakeSearches) Get(ctx context.Context, id string) (*model.Search, error) {
	return f.result, nil
}

func (f *fakeSearches) Status(ctx context.Context, id string) (*model.SearchStatus, error) {
	statuses := f.statuses
	if ch, ok := f.byID[id]; ok {
		statuses = ch
	}
	select {
	case resp := <-statuses:
		return resp.status, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fakeChannel 记录订阅，测试直接调用回调模拟推送
type fakeChannel struct {
	mu           sync.Mutex
	connects     int
	subs         map[string]realtime.TaskCallback
	unsubscribed []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subs: make(map[string]realtime.TaskCallback)}
}

func (f *fakeChannel) Connect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
}

func (f *fakeChannel) SubscribeTask(taskID string, cb realtime.TaskCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[taskID] = cb
}

func (f *fakeChannel) UnsubscribeTask(taskID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, taskID)
	f.unsubscribed = append(f.unsubscribed, taskID)
}

func (f *fakeChannel) callback(taskID string) realtime.TaskCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[taskID]
}

func (f *fakeChannel) isUnsubscribed(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.unsubscribed {
		if id == taskID {
			return true
		}
	}
	return false
}

type fakeHistory struct {
	mu       sync.Mutex
	started  []string
	finished map[string]model.ProgressSnapshot
}

func (f *fakeHistory) RecordStart(kind model.TaskKind, taskID, subjectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, taskID)
}

func (f *fakeHistory) RecordFinish(taskID string, snapshot model.ProgressSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[taskID] = snapshot
}

type fixture struct {
	projects *fakeProjects
	searches *fakeSearches
	channel  *fakeChannel
	history  *fakeHistory
	store    *store.Store
	rec      *reconciler.Reconciler
}

func newFixture(t *testing.T, maxDuration time.Duration) *fixture {
	f := &fixture{
		projects: newFakeProjects(),
		searches: &fakeSearches{statuses: make(chan searchStatusResp, 16)},
		channel:  newFakeChannel(),
		history:  &fakeHistory{finished: make(map[string]model.ProgressSnapshot)},
		store:    store.New(config.SelectionConfig{Min: 3, Max: 10}),
	}
	f.rec = reconciler.New(
		config.PollConfig{Interval: time.Millisecond, MaxDuration: maxDuration},
		f.projects, f.searches, f.channel, f.store, logger.Nop(),
		reconciler.WithHistory(f.history),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = f.rec.Shutdown(ctx)
	})
	return f
}

func waitDone(t *testing.T, tr *reconciler.Tracker) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(waitFor):
		t.Fatal("tracker did not finish")
	}
}

func percent(p int) *int { return &p }

func TestGenerationTerminalConvergence(t *testing.T) {
	f := newFixture(t, time.Minute)

	tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, "t1", tr.TaskID())
	assert.Equal(t, 1, f.channel.connects)

	push := f.channel.callback("t1")
	require.NotNil(t, push)

	f.projects.feed(model.TaskStatusProcessing, 10)
	require.Eventually(t, func() bool { return f.store.Generation().Progress == 10 }, waitFor, tick)

	f.projects.feed(model.TaskStatusProcessing, 55)
	require.Eventually(t, func() bool { return f.store.Generation().Progress == 55 }, waitFor, tick)

	// 存活期间后写者胜，较低的推送也会覆盖
	push(realtime.TaskUpdate{TaskID: "t1", State: model.TaskStateProgress, Info: model.TaskInfo{Percent: percent(20), Status: "合成中"}})
	assert.Equal(t, model.ProgressSnapshot{Progress: 20, Status: model.TaskStatusProcessing, Message: "合成中"}, f.store.Generation())

	f.projects.feed(model.TaskStatusCompleted, 0)
	waitDone(t, tr)

	// 终态之后到达的低进度推送不会让快照倒退
	push(realtime.TaskUpdate{TaskID: "t1", State: model.TaskStateProgress, Info: model.TaskInfo{Percent: percent(30)}})

	for _, snap := range []model.ProgressSnapshot{tr.Snapshot(), f.store.Generation()} {
		assert.Equal(t, 100, snap.Progress)
		assert.Equal(t, model.TaskStatusCompleted, snap.Status)
	}
	assert.NoError(t, tr.Err())
	assert.True(t, f.channel.isUnsubscribed("t1"))

	// 完成后刷新项目信息
	assert.Equal(t, 1, f.projects.getCount())
	assert.Equal(t, f.projects.project, tr.Project())
	assert.Equal(t, "p1", f.store.Snapshot().CurrentProject.ID)

	assert.Equal(t, []string{"t1"}, f.history.started)
	assert.Equal(t, model.TaskStatusCompleted, f.history.finished["t1"].Status)
}

func TestGenerationPushTerminalStates(t *testing.T) {
	tests := map[string]struct {
		state      model.TaskState
		expStatus  model.TaskStatus
		expMessage string
		expRefresh int
	}{
		"SUCCESS": {state: model.TaskStateSuccess, expStatus: model.TaskStatusCompleted, expMessage: "视频生成完成！", expRefresh: 1},
		"FAILURE": {state: model.TaskStateFailure, expStatus: model.TaskStatusFailed, expMessage: "视频生成失败"},
		"REVOKED": {state: model.TaskStateRevoked, expStatus: model.TaskStatusFailed, expMessage: "视频生成已取消"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, time.Minute)

			tr, err := f.rec.StartGeneration(context.Background(), "p1", "/music/a.mp3")
			require.NoError(t, err)

			f.channel.callback("t1")(realtime.TaskUpdate{TaskID: "t1", State: test.state})
			waitDone(t, tr)

			gen := f.store.Generation()
			assert.Equal(t, test.expStatus, gen.Status)
			assert.Equal(t, test.expMessage, gen.Message)
			assert.NoError(t, tr.Err())
			assert.True(t, f.channel.isUnsubscribed("t1"))
			assert.Equal(t, test.expRefresh, f.projects.getCount())
		})
	}
}

func TestGenerationPollFailed(t *testing.T) {
	tests := map[string]struct {
		serverMessage string
		expMessage    string
	}{
		"使用服务端消息": {serverMessage: "ffmpeg exited with 1", expMessage: "ffmpeg exited with 1"},
		"没有消息时使用默认值": {expMessage: "视频生成失败"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, time.Minute)

			tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
			require.NoError(t, err)

			f.projects.statuses <- projectStatusResp{status: &model.ProjectStatus{Status: model.TaskStatusFailed, ErrorMessage: test.serverMessage}}
			waitDone(t, tr)

			assert.Equal(t, model.TaskStatusFailed, f.store.Generation().Status)
			assert.Equal(t, test.expMessage, f.store.Generation().Message)
			assert.Zero(t, f.projects.getCount())
		})
	}
}

func TestStartGenerationTriggerError(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.projects.genErr = errors.New("project has no videos")

	tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
	assert.Nil(t, tr)
	assert.EqualError(t, err, "project has no videos")
	assert.Nil(t, f.channel.callback("t1"))
	assert.Empty(t, f.rec.Active())

	f.projects.genErr = nil
	f.projects.genRes = &model.GenerateResult{}
	_, err = f.rec.StartGeneration(context.Background(), "p1", "")
	assert.ErrorIs(t, err, reconciler.ErrEmptyTaskID)
}

func TestPollErrorsAreRetried(t *testing.T) {
	f := newFixture(t, time.Minute)

	tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
	require.NoError(t, err)

	f.projects.statuses <- projectStatusResp{err: errors.New("connection refused")}
	f.projects.statuses <- projectStatusResp{err: errors.New("connection refused")}
	f.projects.feed(model.TaskStatusCompleted, 100)
	waitDone(t, tr)

	assert.Equal(t, model.TaskStatusCompleted, tr.Snapshot().Status)
	assert.NoError(t, tr.Err())
}

func TestTrackerCancel(t *testing.T) {
	f := newFixture(t, time.Minute)

	tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
	require.NoError(t, err)
	push := f.channel.callback("t1")

	require.NoError(t, f.rec.Cancel("t1"))
	waitDone(t, tr)
	tr.Cancel()

	assert.ErrorIs(t, tr.Err(), context.Canceled)
	assert.True(t, f.channel.isUnsubscribed("t1"))
	assert.Empty(t, f.rec.Active())
	assert.ErrorIs(t, f.rec.Cancel("t1"), reconciler.ErrTrackerNotFound)

	// 取消后的写入被丢弃
	push(realtime.TaskUpdate{TaskID: "t1", State: model.TaskStateSuccess})
	assert.Equal(t, model.TaskStatusProcessing, f.store.Generation().Status)
	assert.Zero(t, f.projects.getCount())
}

func TestPollTimeout(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)

	tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	assert.ErrorIs(t, tr.Wait(ctx), reconciler.ErrPollTimeout)
	assert.True(t, f.channel.isUnsubscribed("t1"))
}

func TestMonitorProject(t *testing.T) {
	t.Run("带 task_id 时订阅推送", func(t *testing.T) {
		f := newFixture(t, time.Minute)

		tr := f.rec.MonitorProject("p1", "t9")
		require.NotNil(t, f.channel.callback("t9"))

		f.projects.feed(model.TaskStatusQueued, 0)
		require.Eventually(t, func() bool { return f.store.Generation().Status == model.TaskStatusQueued }, waitFor, tick)

		f.projects.feed(model.TaskStatusCompleted, 100)
		waitDone(t, tr)
		assert.True(t, f.channel.isUnsubscribed("t9"))
	})

	t.Run("没有 task_id 时只轮询", func(t *testing.T) {
		f := newFixture(t, time.Minute)

		tr := f.rec.MonitorProject("p1", "")
		assert.Equal(t, "project:p1", tr.TaskID())
		assert.Zero(t, f.channel.connects)

		f.projects.feed(model.TaskStatusCompleted, 100)
		waitDone(t, tr)
		assert.Empty(t, f.channel.unsubscribed)
		assert.Equal(t, model.TaskStatusCompleted, f.store.Generation().Status)
	})
}

func TestTrackSearchEndToEnd(t *testing.T) {
	f := newFixture(t, time.Minute)
	result := &model.Search{
		ID:      "s1",
		Keyword: "goals",
		Status:  model.TaskStatusCompleted,
		Videos:  []model.Video{{ID: "v1", Title: "top goal"}, {ID: "v2"}},
	}
	f.searches.result = result
	f.store.AddSearch(model.Search{ID: "s1", Keyword: "goals", Status: model.TaskStatusProcessing})

	for _, s := range []model.TaskStatus{model.TaskStatusProcessing, model.TaskStatusProcessing, model.TaskStatusCompleted} {
		f.searches.statuses <- searchStatusResp{status: &model.SearchStatus{Status: s}}
	}

	tr := f.rec.TrackSearch("s1")
	waitDone(t, tr)

	snap := tr.Snapshot()
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, model.TaskStatusCompleted, snap.Status)
	assert.Same(t, result, tr.Search())

	st := f.store.Snapshot()
	assert.Equal(t, *result, *st.CurrentSearch)
	assert.Equal(t, result.Videos, st.Videos)
	assert.Equal(t, model.TaskStatusCompleted, st.Searches[0].Status)
	assert.False(t, st.VideosLoading)

	// 搜索跟踪不影响生成进度
	assert.Equal(t, model.TaskStatusIdle, st.Generation.Status)
}

func TestTrackSearchFailed(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.searches.statuses <- searchStatusResp{status: &model.SearchStatus{Status: model.TaskStatusFailed, ErrorMessage: "rate limited"}}

	tr := f.rec.TrackSearch("s1")
	waitDone(t, tr)

	assert.Equal(t, model.ProgressSnapshot{Status: model.TaskStatusFailed, Message: "搜索失败: rate limited"}, tr.Snapshot())
	assert.Nil(t, tr.Search())
	assert.False(t, f.store.Snapshot().VideosLoading)
}

func TestListenerCanCancelOnFailure(t *testing.T) {
	f := newFixture(t, time.Minute)

	cancelErr := make(chan error, 1)
	unsubscribe := f.store.Subscribe(func(st store.State) {
		if st.Generation.Status == model.TaskStatusFailed {
			cancelErr <- f.rec.Cancel("t1")
		}
	})
	defer unsubscribe()

	tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
	require.NoError(t, err)

	f.projects.statuses <- projectStatusResp{status: &model.ProjectStatus{Status: model.TaskStatusFailed, ErrorMessage: "out of disk"}}
	waitDone(t, tr)

	select {
	case err := <-cancelErr:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("listener was not called")
	}
	assert.Equal(t, model.TaskStatusFailed, tr.Snapshot().Status)
	assert.Equal(t, "out of disk", f.store.Generation().Message)
	assert.True(t, f.channel.isUnsubscribed("t1"))
	assert.Empty(t, f.rec.Active())
}

func TestListenerCanReadTrackerSnapshot(t *testing.T) {
	f := newFixture(t, time.Minute)

	var (
		current atomic.Pointer[reconciler.Tracker]
		seen    atomic.Int32
	)
	unsubscribe := f.store.Subscribe(func(st store.State) {
		if tr := current.Load(); tr != nil && tr.Snapshot().Progress == 40 {
			seen.Add(1)
		}
	})
	defer unsubscribe()

	tr, err := f.rec.StartGeneration(context.Background(), "p1", "")
	require.NoError(t, err)
	current.Store(tr)

	f.projects.feed(model.TaskStatusProcessing, 40)
	require.Eventually(t, func() bool { return seen.Load() > 0 }, waitFor, tick)

	f.projects.feed(model.TaskStatusCompleted, 100)
	waitDone(t, tr)
	assert.Equal(t, model.TaskStatusCompleted, tr.Snapshot().Status)
}

func TestOverlappingSearchesKeepLoading(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.searches.result = &model.Search{ID: "s2", Keyword: "saves", Status: model.TaskStatusCompleted}
	f.searches.byID = map[string]chan searchStatusResp{
		"s1": make(chan searchStatusResp, 1),
		"s2": make(chan searchStatusResp, 1),
	}

	first := f.rec.TrackSearch("s1")
	second := f.rec.TrackSearch("s2")

	f.searches.byID["s1"] <- searchStatusResp{status: &model.SearchStatus{Status: model.TaskStatusFailed}}
	waitDone(t, first)

	// 另一个搜索仍在进行，加载状态保持
	assert.True(t, f.store.Snapshot().VideosLoading)

	f.searches.byID["s2"] <- searchStatusResp{status: &model.SearchStatus{Status: model.TaskStatusCompleted}}
	waitDone(t, second)
	assert.False(t, f.store.Snapshot().VideosLoading)
}
