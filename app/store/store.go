// Package store 是各视图共享的唯一可变状态容器，只能通过具名动作修改。
package store

import (
	"errors"
	"fmt"
	"sync"

	"shorts-studio/app/config"
	"shorts-studio/app/model"
)

var (
	ErrSelectionTooSmall = errors.New("选择的视频数量不足")
	ErrSelectionTooLarge = errors.New("选择的视频数量超出上限")
)

// SelectionError 提交时的选择数量校验错误，Message 可直接展示给用户
type SelectionError struct {
	Err     error
	Message string
}

func (e *SelectionError) Error() string {
	return e.Message
}

func (e *SelectionError) Unwrap() error {
	return e.Err
}

// State 状态快照
type State struct {
	// 搜索
	Searches      []model.Search `json:"searches"`
	CurrentSearch *model.Search  `json:"current_search"`
	SearchLoading bool           `json:"search_loading"`

	// 视频
	Videos         []model.Video `json:"videos"`
	SelectedVideos []model.Video `json:"selected_videos"`
	VideosLoading  bool          `json:"videos_loading"`

	// 项目
	Projects       []model.Project `json:"projects"`
	CurrentProject *model.Project  `json:"current_project"`
	ProjectLoading bool            `json:"project_loading"`

	// 生成进度
	Generation model.ProgressSnapshot `json:"generation"`

	// 界面
	SidebarOpen  bool   `json:"sidebar_open"`
	ModalOpen    bool   `json:"modal_open"`
	ModalContent string `json:"modal_content,omitempty"`
}

// Listener 每次修改后以最新快照调用
type Listener func(State)

// Store 应用状态容器
type Store struct {
	mu           sync.RWMutex
	state        State
	minSelection int
	maxSelection int

	lmu       sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// New 创建状态容器
func New(cfg config.SelectionConfig) *Store {
	return &Store{
		state:        initialState(),
		minSelection: cfg.Min,
		maxSelection: cfg.Max,
		listeners:    make(map[int]Listener),
	}
}

func initialState() State {
	return State{
		Searches:       []model.Search{},
		Videos:         []model.Video{},
		SelectedVideos: []model.Video{},
		Projects:       []model.Project{},
		Generation:     model.ProgressSnapshot{Status: model.TaskStatusIdle},
		SidebarOpen:    true,
	}
}

// Snapshot 返回当前状态的深拷贝
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Generation 当前生成进度
func (s *Store) Generation() model.ProgressSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

// SelectedVideos 当前选择集合的拷贝
func (s *Store) SelectedVideos() []model.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Video(nil), s.state.SelectedVideos...)
}

// Subscribe 注册变更监听，返回取消函数
func (s *Store) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// update 在写锁内执行修改；mutate 返回 false 表示没有变化，不通知监听者
func (s *Store) update(mutate func(st *State) bool) {
	s.mu.Lock()
	changed := mutate(&s.state)
	var snapshot State
	if changed {
		snapshot = s.state.clone()
	}
	s.mu.Unlock()

	if !changed {
		return
	}

	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.lmu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// ---- 搜索 ----

func (s *Store) SetSearches(searches []model.Search) {
	s.update(func(st *State) bool {
		st.Searches = append([]model.Search{}, searches...)
		return true
	})
}

// AddSearch 新搜索放在列表最前
func (s *Store) AddSearch(search model.Search) {
	s.update(func(st *State) bool {
		st.Searches = append([]model.Search{search}, st.Searches...)
		return true
	})
}

// UpdateSearch 按 ID 替换列表中的搜索，当前搜索是同一条时一并替换
func (s *Store) UpdateSearch(search model.Search) {
	s.update(func(st *State) bool {
		for i := range st.Searches {
			if st.Searches[i].ID == search.ID {
				st.Searches[i] = search
			}
		}
		if st.CurrentSearch != nil && st.CurrentSearch.ID == search.ID {
			cp := search
			st.CurrentSearch = &cp
		}
		return true
	})
}

func (s *Store) SetCurrentSearch(search *model.Search) {
	s.update(func(st *State) bool {
		st.CurrentSearch = cloneSearch(search)
		return true
	})
}

func (s *Store) SetSearchLoading(loading bool) {
	s.update(func(st *State) bool {
		if st.SearchLoading == loading {
			return false
		}
		st.SearchLoading = loading
		return true
	})
}

// ---- 视频 ----

func (s *Store) SetVideos(videos []model.Video) {
	s.update(func(st *State) bool {
		st.Videos = append([]model.Video{}, videos...)
		return true
	})
}

func (s *Store) SetVideosLoading(loading bool) {
	s.update(func(st *State) bool {
		if st.VideosLoading == loading {
			return false
		}
		st.VideosLoading = loading
		return true
	})
}

// RemoveVideo 从结果列表和选择集合中移除
func (s *Store) RemoveVideo(id string) {
	s.update(func(st *State) bool {
		before := len(st.Videos) + len(st.SelectedVideos)
		st.Videos = withoutVideo(st.Videos, id)
		st.SelectedVideos = withoutVideo(st.SelectedVideos, id)
		return len(st.Videos)+len(st.SelectedVideos) != before
	})
}

// ---- 选择集合 ----

// ToggleVideoSelection 已选则移除；未选且未达上限则追加；达到上限时静默忽略
func (s *Store) ToggleVideoSelection(video model.Video) {
	s.update(func(st *State) bool {
		if indexOfVideo(st.SelectedVideos, video.ID) >= 0 {
			st.SelectedVideos = withoutVideo(st.SelectedVideos, video.ID)
			return true
		}
		if len(st.SelectedVideos) >= s.maxSelection {
			return false
		}
		st.SelectedVideos = append(st.SelectedVideos, video)
		return true
	})
}

// SetSelectedVideos 整体替换选择集合，重复项只保留第一次出现，超出上限的部分截断
func (s *Store) SetSelectedVideos(videos []model.Video) {
	s.update(func(st *State) bool {
		selected := make([]model.Video, 0, len(videos))
		for _, v := range videos {
			if indexOfVideo(selected, v.ID) >= 0 {
				continue
			}
			if len(selected) >= s.maxSelection {
				break
			}
			selected = append(selected, v)
		}
		st.SelectedVideos = selected
		return true
	})
}

// ReorderSelectedVideos 把 from 位置的视频移动到 to，越界时不做任何事
func (s *Store) ReorderSelectedVideos(from, to int) {
	s.update(func(st *State) bool {
		n := len(st.SelectedVideos)
		if from < 0 || from >= n || to < 0 || to >= n || from == to {
			return false
		}

		result := append([]model.Video{}, st.SelectedVideos...)
		moved := result[from]
		result = append(result[:from], result[from+1:]...)
		result = append(result[:to], append([]model.Video{moved}, result[to:]...)...)
		st.SelectedVideos = result
		return true
	})
}

func (s *Store) ClearSelectedVideos() {
	s.update(func(st *State) bool {
		if len(st.SelectedVideos) == 0 {
			return false
		}
		st.SelectedVideos = []model.Video{}
		return true
	})
}

// ValidateSelection 提交前检查选择数量
func (s *Store) ValidateSelection() error {
	n := len(s.SelectedVideos())
	switch {
	case n < s.minSelection:
		return &SelectionError{
			Err:     ErrSelectionTooSmall,
			Message: fmt.Sprintf("请至少选择 %d 个视频", s.minSelection),
		}
	case n > s.maxSelection:
		return &SelectionError{
			Err:     ErrSelectionTooLarge,
			Message: fmt.Sprintf("最多只能选择 %d 个视频", s.maxSelection),
		}
	}
	return nil
}

// ---- 项目 ----

func (s *Store) SetProjects(projects []model.Project) {
	s.update(func(st *State) bool {
		st.Projects = append([]model.Project{}, projects...)
		return true
	})
}

// AddProject 新项目放在列表最前
func (s *Store) AddProject(project model.Project) {
	s.update(func(st *State) bool {
		st.Projects = append([]model.Project{project}, st.Projects...)
		return true
	})
}

func (s *Store) SetCurrentProject(project *model.Project) {
	s.update(func(st *State) bool {
		st.CurrentProject = cloneProject(project)
		return true
	})
}

func (s *Store) SetProjectLoading(loading bool) {
	s.update(func(st *State) bool {
		if st.ProjectLoading == loading {
			return false
		}
		st.ProjectLoading = loading
		return true
	})
}

// ---- 生成进度 ----

// UpdateGenerationState 合并局部更新，未指定的字段保持不变
func (s *Store) UpdateGenerationState(u model.GenerationUpdate) {
	s.update(func(st *State) bool {
		next := u.Apply(st.Generation)
		if next == st.Generation {
			return false
		}
		st.Generation = next
		return true
	})
}

// ResetGeneration 恢复为 {0, idle, ""}
func (s *Store) ResetGeneration() {
	s.update(func(st *State) bool {
		st.Generation = model.ProgressSnapshot{Status: model.TaskStatusIdle}
		return true
	})
}

// ---- 界面 ----

func (s *Store) ToggleSidebar() {
	s.update(func(st *State) bool {
		st.SidebarOpen = !st.SidebarOpen
		return true
	})
}

func (s *Store) SetSidebarOpen(open bool) {
	s.update(func(st *State) bool {
		if st.SidebarOpen == open {
			return false
		}
		st.SidebarOpen = open
		return true
	})
}

func (s *Store) OpenModal(content string) {
	s.update(func(st *State) bool {
		st.ModalOpen = true
		st.ModalContent = content
		return true
	})
}

func (s *Store) CloseModal() {
	s.update(func(st *State) bool {
		if !st.ModalOpen {
			return false
		}
		st.ModalOpen = false
		st.ModalContent = ""
		return true
	})
}

func indexOfVideo(videos []model.Video, id string) int {
	for i, v := range videos {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func withoutVideo(videos []model.Video, id string) []model.Video {
	out := make([]model.Video, 0, len(videos))
	for _, v := range videos {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}
