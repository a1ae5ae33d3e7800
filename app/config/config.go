package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	API       APIConfig       `mapstructure:"api"`
	WS        WSConfig        `mapstructure:"ws"`
	Poll      PollConfig      `mapstructure:"poll"`
	Selection SelectionConfig `mapstructure:"selection"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	File       string `mapstructure:"file"`        // output=file 时的日志路径
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

// APIConfig 后端 REST 接口配置，运行期间不可按请求覆盖
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WSConfig 实时通道配置
type WSConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
}

// PollConfig 状态轮询配置
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxDuration time.Duration `mapstructure:"max_duration"` // 轮询总时长上限
}

// SelectionConfig 视频选择数量限制
type SelectionConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// HistoryConfig 任务历史保留天数
type HistoryConfig struct {
	CompletedRetentionDays int `mapstructure:"completed_retention_days"`
	FailedRetentionDays    int `mapstructure:"failed_retention_days"`
}

// Load 从全局 viper 读取配置，失败直接退出
func Load() *Config {
	cfg, err := Parse(viper.GetViper())
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
	return cfg
}

// Parse 在给定的 viper 实例上设置默认值、绑定环境变量并解码配置
func Parse(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	// 读取配置
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件出错: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解码配置: %w", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// Watch 监听配置文件变化，变化后重新解码并回调
func Watch(v *viper.Viper, onChange func(*Config, error)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var config Config
		if err := v.Unmarshal(&config); err != nil {
			onChange(nil, fmt.Errorf("无法解码配置: %w", err))
			return
		}
		if err := validateConfig(&config); err != nil {
			onChange(nil, err)
			return
		}
		onChange(&config, nil)
	})
	v.WatchConfig()
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "data/logs/shorts-studio.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	// 后端接口
	v.SetDefault("api.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("api.timeout", 30*time.Second)

	// 实时通道
	v.SetDefault("ws.base_url", "ws://localhost:8000")
	v.SetDefault("ws.reconnect_attempts", 5)
	v.SetDefault("ws.reconnect_delay", time.Second)
	v.SetDefault("ws.ping_interval", 30*time.Second)

	// 轮询
	v.SetDefault("poll.interval", 2*time.Second)
	v.SetDefault("poll.max_duration", 30*time.Minute)

	v.SetDefault("selection.min", 3)
	v.SetDefault("selection.max", 10)

	v.SetDefault("database.path", "data/shorts-studio.db")

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("history.completed_retention_days", 7)
	v.SetDefault("history.failed_retention_days", 30)
}

// bindEnv 绑定环境变量，API_URL / WS_URL 与前端构建时的变量名保持一致
func bindEnv(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("api.base_url", "API_URL", "VITE_API_URL"); err != nil {
		return err
	}
	return v.BindEnv("ws.base_url", "WS_URL", "VITE_WS_URL")
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.API.BaseURL == "" {
		return fmt.Errorf("api.base_url 未设置")
	}
	if config.WS.BaseURL == "" {
		return fmt.Errorf("ws.base_url 未设置")
	}
	if config.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout 必须大于 0")
	}
	if config.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval 必须大于 0")
	}
	if config.Selection.Min < 0 || config.Selection.Max <= 0 || config.Selection.Min > config.Selection.Max {
		return fmt.Errorf("selection 范围无效: min=%d max=%d", config.Selection.Min, config.Selection.Max)
	}
	return nil
}
