package store

import (
	"maps"

	"shorts-studio/app/model"
)

// clone 深拷贝，读者拿到的快照与内部状态不共享底层数组
func (st State) clone() State {
	out := st
	out.Searches = make([]model.Search, len(st.Searches))
	for i := range st.Searches {
		out.Searches[i] = *cloneSearch(&st.Searches[i])
	}
	out.CurrentSearch = cloneSearch(st.CurrentSearch)
	out.Videos = append([]model.Video{}, st.Videos...)
	out.SelectedVideos = append([]model.Video{}, st.SelectedVideos...)
	out.Projects = make([]model.Project, len(st.Projects))
	for i := range st.Projects {
		out.Projects[i] = *cloneProject(&st.Projects[i])
	}
	out.CurrentProject = cloneProject(st.CurrentProject)
	return out
}

func cloneSearch(s *model.Search) *model.Search {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Videos != nil {
		cp.Videos = append([]model.Video{}, s.Videos...)
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func cloneProject(p *model.Project) *model.Project {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Videos != nil {
		cp.Videos = append([]model.Video{}, p.Videos...)
	}
	if p.Settings != nil {
		cp.Settings = maps.Clone(p.Settings)
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
