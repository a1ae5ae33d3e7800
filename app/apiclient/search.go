package apiclient

import (
	"context"
	"net/url"
	"strconv"

	"shorts-studio/app/model"
)

// SearchAPI /search 接口
type SearchAPI struct {
	c *Client
}

// Create 创建关键词搜索
func (a *SearchAPI) Create(ctx context.Context, keyword string, limit int) (*model.Search, error) {
	var search model.Search
	err := a.c.post(ctx, "/search", model.SearchCreate{Keyword: keyword, Limit: limit}, nil, &search)
	if err != nil {
		return nil, err
	}
	return &search, nil
}

// List 分页列出搜索记录
func (a *SearchAPI) List(ctx context.Context, skip, limit int) ([]model.Search, error) {
	var searches []model.Search
	err := a.c.get(ctx, "/search", pageParams(skip, limit), &searches)
	return searches, err
}

// Get 获取搜索详情（包含视频列表）
func (a *SearchAPI) Get(ctx context.Context, id string) (*model.Search, error) {
	var search model.Search
	if err := a.c.get(ctx, "/search/"+url.PathEscape(id), nil, &search); err != nil {
		return nil, err
	}
	return &search, nil
}

// Status 获取搜索状态
func (a *SearchAPI) Status(ctx context.Context, id string) (*model.SearchStatus, error) {
	var status model.SearchStatus
	if err := a.c.get(ctx, "/search/"+url.PathEscape(id)+"/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Delete 删除搜索记录
func (a *SearchAPI) Delete(ctx context.Context, id string) error {
	return a.c.delete(ctx, "/search/"+url.PathEscape(id), nil)
}

func pageParams(skip, limit int) map[string]string {
	return map[string]string{
		"skip":  strconv.Itoa(skip),
		"limit": strconv.Itoa(limit),
	}
}
