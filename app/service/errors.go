package service

import "errors"

var (
	ErrEmptyKeyword       = errors.New("请输入搜索关键词")
	ErrNoCurrentSearch    = errors.New("没有选中的搜索")
	ErrTaskRecordNotFound = errors.New("任务记录不存在")
)
