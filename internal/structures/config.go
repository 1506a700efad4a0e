package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type FeishuConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	AppID         string        `yaml:"appId" validate:"required"`
	AppSecret     string        `yaml:"appSecret" validate:"required"`
	AppToken      string        `yaml:"appToken" validate:"required"`
	RecordTable   string        `yaml:"recordTable" validate:"required"`
	CategoryTable string        `yaml:"categoryTable" validate:"required"`
	Timeout       time.Duration `yaml:"timeout"`
	PageSize      int           `yaml:"pageSize"`
}

type SyncConfig struct {
	// TTL after which a cached month (and the access token) is stale.
	TTL time.Duration `yaml:"ttl" validate:"required|min:1"`
	// PrefetchRadius is the number of months loaded on each side of the
	// center month during preload.
	PrefetchRadius int `yaml:"prefetchRadius"`
}

type Persistence struct {
	Dir           string        `yaml:"dir" validate:"required|unixPath"`
	FlushInterval time.Duration `yaml:"flushInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RecommendConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Feishu      FeishuConfig    `yaml:"feishu"`
	Sync        SyncConfig      `yaml:"sync"`
	WebServer   Server          `yaml:"webServer"`
	Persistence Persistence     `yaml:"persistence"`
	Logger      LoggerConfig    `yaml:"logger"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Recommend   RecommendConfig `yaml:"recommend"`
}
