package reconciler

import (
	"context"

	"shorts-studio/app/model"
	"shorts-studio/app/realtime"
)

// pollProject 轮询项目状态，直到终态或跟踪结束
func (r *Reconciler) pollProject(t *Tracker) {
	for {
		status, err := r.projects.Status(t.ctx, t.subjectID)
		switch {
		case err != nil:
			if t.ctx.Err() != nil {
				return
			}
			// 下一轮重试，总时长受 max_duration 限制
			r.log.Warnf("查询项目状态失败: %s: %v", t.subjectID, err)
		case t.apply(projectStatusUpdate(status)):
			return
		}

		if !t.sleep(r.interval) {
			return
		}
	}
}

// projectStatusUpdate 把 GET /projects/{id}/status 的响应转换成进度更新
func projectStatusUpdate(s *model.ProjectStatus) model.GenerationUpdate {
	switch s.Status {
	case model.TaskStatusCompleted:
		return model.Progress(100).WithStatus(model.TaskStatusCompleted).WithMessage(msgGenerateCompleted)

	case model.TaskStatusFailed:
		msg := s.ErrorMessage
		if msg == "" {
			msg = msgGenerateFailed
		}
		return model.GenerationUpdate{}.WithStatus(model.TaskStatusFailed).WithMessage(msg)

	case model.TaskStatusProcessing, model.TaskStatusQueued:
		msg := msgProcessing
		if s.TaskInfo != nil && s.TaskInfo.Status != "" {
			msg = s.TaskInfo.Status
		}
		return model.Progress(s.RenderProgress).WithStatus(s.Status).WithMessage(msg)
	}

	// 其他状态（例如尚未排队）不改变快照，继续轮询
	return model.GenerationUpdate{}
}

// handleGenerationPush 处理实时通道推送的生成任务状态
func (t *Tracker) handleGenerationPush(u realtime.TaskUpdate) {
	switch u.State {
	case model.TaskStateProgress:
		percent := 0
		if u.Info.Percent != nil {
			percent = *u.Info.Percent
		}
		msg := u.Info.Status
		if msg == "" {
			msg = msgProcessing
		}
		t.apply(model.Progress(percent).WithStatus(model.TaskStatusProcessing).WithMessage(msg))

	case model.TaskStateSuccess:
		t.apply(model.Progress(100).WithStatus(model.TaskStatusCompleted).WithMessage(msgGenerateCompleted))

	case model.TaskStateFailure:
		t.apply(model.GenerationUpdate{}.WithStatus(model.TaskStatusFailed).WithMessage(msgGenerateFailed))

	case model.TaskStateRevoked:
		t.apply(model.GenerationUpdate{}.WithStatus(model.TaskStatusFailed).WithMessage(msgGenerateRevoked))

	default:
		t.r.log.Debugf("忽略任务推送: %s %s", u.TaskID, u.State)
	}
}

// refreshProject 生成完成后刷新项目信息
func (r *Reconciler) refreshProject(ctx context.Context, t *Tracker) {
	if !t.completed() {
		return
	}

	project, err := r.projects.Get(ctx, t.subjectID)
	if err != nil {
		r.log.Warnf("刷新项目信息失败: %s: %v", t.subjectID, err)
		return
	}

	t.mu.Lock()
	t.project = project
	t.mu.Unlock()

	r.state.SetCurrentProject(project)
}

// pollSearch 轮询搜索状态，直到终态或跟踪结束
func (r *Reconciler) pollSearch(t *Tracker) {
	for {
		status, err := r.searches.Status(t.ctx, t.subjectID)
		switch {
		case err != nil:
			if t.ctx.Err() != nil {
				return
			}
			r.log.Warnf("查询搜索状态失败: %s: %v", t.subjectID, err)
		case t.apply(searchStatusUpdate(status)):
			return
		}

		if !t.sleep(r.interval) {
			return
		}
	}
}

func searchStatusUpdate(s *model.SearchStatus) model.GenerationUpdate {
	switch s.Status {
	case model.TaskStatusCompleted:
		return model.Progress(100).WithStatus(model.TaskStatusCompleted).WithMessage(msgSearchCompleted)

	case model.TaskStatusFailed:
		msg := msgSearchFailed
		if s.ErrorMessage != "" {
			msg = msgSearchFailed + ": " + s.ErrorMessage
		}
		return model.GenerationUpdate{}.WithStatus(model.TaskStatusFailed).WithMessage(msg)

	case model.TaskStatusProcessing, model.TaskStatusQueued:
		return model.GenerationUpdate{}.WithStatus(s.Status).WithMessage(msgProcessing)
	}
	return model.GenerationUpdate{}
}

// finalizeSearch 搜索结束后取回结果并写入状态，原样交给视图层
func (r *Reconciler) finalizeSearch(ctx context.Context, t *Tracker) {
	defer func() {
		// 还有其他搜索在进行时保持加载状态
		if !r.searchActive() {
			r.state.SetVideosLoading(false)
		}
	}()

	if !t.completed() {
		return
	}

	search, err := r.searches.Get(ctx, t.subjectID)
	if err != nil {
		r.log.Warnf("获取搜索结果失败: %s: %v", t.subjectID, err)
		return
	}

	t.mu.Lock()
	t.search = search
	t.mu.Unlock()

	r.state.UpdateSearch(*search)
	r.state.SetCurrentSearch(search)
	r.state.SetVideos(search.Videos)
}
