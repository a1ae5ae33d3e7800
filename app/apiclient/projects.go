package apiclient

import (
	"context"
	"net/url"

	"shorts-studio/app/model"
)

// ProjectsAPI /projects 接口
type ProjectsAPI struct {
	c *Client
}

// Create 创建项目
func (a *ProjectsAPI) Create(ctx context.Context, title, description string) (*model.Project, error) {
	var project model.Project
	err := a.c.post(ctx, "/projects", model.ProjectCreate{Title: title, Description: description}, nil, &project)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// List 分页列出项目
func (a *ProjectsAPI) List(ctx context.Context, skip, limit int) ([]model.Project, error) {
	var projects []model.Project
	err := a.c.get(ctx, "/projects", pageParams(skip, limit), &projects)
	return projects, err
}

// Get 获取项目详情
func (a *ProjectsAPI) Get(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	if err := a.c.get(ctx, "/projects/"+url.PathEscape(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Update 更新项目，fields 只包含需要修改的字段
func (a *ProjectsAPI) Update(ctx context.Context, id string, fields map[string]any) (*model.Project, error) {
	var project model.Project
	if err := a.c.put(ctx, "/projects/"+url.PathEscape(id), fields, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// AddVideos 把视频加入项目，顺序即排行顺序
func (a *ProjectsAPI) AddVideos(ctx context.Context, id string, videoIDs []string) (map[string]any, error) {
	var result map[string]any
	err := a.c.post(ctx, "/projects/"+url.PathEscape(id)+"/videos", videoIDs, nil, &result)
	return result, err
}

// Generate 触发视频生成，返回后端任务ID
func (a *ProjectsAPI) Generate(ctx context.Context, id, musicPath string) (*model.GenerateResult, error) {
	var params map[string]string
	if musicPath != "" {
		params = map[string]string{"music_path": musicPath}
	}

	var result model.GenerateResult
	if err := a.c.post(ctx, "/projects/"+url.PathEscape(id)+"/generate", nil, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status 获取生成进度
func (a *ProjectsAPI) Status(ctx context.Context, id string) (*model.ProjectStatus, error) {
	var status model.ProjectStatus
	if err := a.c.get(ctx, "/projects/"+url.PathEscape(id)+"/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Delete 删除项目
func (a *ProjectsAPI) Delete(ctx context.Context, id string) error {
	return a.c.delete(ctx, "/projects/"+url.PathEscape(id), nil)
}
