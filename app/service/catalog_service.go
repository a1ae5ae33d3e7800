package service

import (
	"context"

	"shorts-studio/app/apiclient"
	"shorts-studio/app/config"
	"shorts-studio/app/logger"
	"shorts-studio/app/model"
	"shorts-studio/app/store"

	"github.com/patrickmn/go-cache"
)

const statsCacheKey = "videos:stats"

// CatalogService 视频详情和统计的只读缓存
type CatalogService struct {
	videos *apiclient.VideosAPI
	store  *store.Store
	cache  *cache.Cache
	log    *logger.Logger
}

// NewCatalogService 创建视频目录服务
func NewCatalogService(videos *apiclient.VideosAPI, st *store.Store, cfg config.CacheConfig, log *logger.Logger) *CatalogService {
	return &CatalogService{
		videos: videos,
		store:  st,
		cache:  cache.New(cfg.TTL, cfg.CleanupInterval),
		log:    log.Named("catalog"),
	}
}

func videoCacheKey(id string) string {
	return "video:" + id
}

// Video 获取视频详情，优先读缓存
func (s *CatalogService) Video(ctx context.Context, id string) (*model.Video, error) {
	if cached, found := s.cache.Get(videoCacheKey(id)); found {
		return cached.(*model.Video), nil
	}

	video, err := s.videos.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(videoCacheKey(id), video, cache.DefaultExpiration)
	return video, nil
}

// Stats 获取视频统计，优先读缓存
func (s *CatalogService) Stats(ctx context.Context) (model.VideoStats, error) {
	if cached, found := s.cache.Get(statsCacheKey); found {
		return cached.(model.VideoStats), nil
	}

	stats, err := s.videos.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Set(statsCacheKey, stats, cache.DefaultExpiration)
	return stats, nil
}

// DeleteVideo 删除视频并使相关缓存失效
func (s *CatalogService) DeleteVideo(ctx context.Context, id string, deleteFile bool) error {
	if err := s.videos.Delete(ctx, id, deleteFile); err != nil {
		return err
	}

	s.cache.Delete(videoCacheKey(id))
	s.cache.Delete(statsCacheKey)
	s.store.RemoveVideo(id)
	s.log.Infof("已删除视频: %s (删除文件: %v)", id, deleteFile)
	return nil
}

// Flush 清空缓存
func (s *CatalogService) Flush() {
	s.cache.Flush()
}
