package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/session"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Stats   StatsConfig   `yaml:"stats"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSAllowOrigin string        `yaml:"corsAllowOrigin"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	MaxConcurrent   int           `yaml:"maxConcurrent"`
	AcquireTimeout  time.Duration `yaml:"acquireTimeout"`
}

type ModelConfig struct {
	Family      string `yaml:"family"`
	Root        string `yaml:"root"`
	LibraryPath string `yaml:"libraryPath"` // onnxruntime 共享库路径，空则用系统默认
	Debug       bool   `yaml:"debug"`
}

type SessionConfig struct {
	OptLevel          string   `yaml:"optLevel"`
	NumThreads        int      `yaml:"numThreads"`
	ParallelExecution bool     `yaml:"parallelExecution"`
	MemoryPattern     bool     `yaml:"memoryPattern"`
	Providers         []string `yaml:"providers"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"maxSizeMB"`
	MaxBackups  int    `yaml:"maxBackups"`
	MaxAgeDays  int    `yaml:"maxAgeDays"`
	Compress    bool   `yaml:"compress"`
}

type StatsConfig struct {
	Cron string `yaml:"cron"` // 为空时不启动统计任务
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3080",
			CORSAllowOrigin: "http://localhost:5173",
			MaxUploadBytes:  20 << 20,
			MaxConcurrent:   runtime.NumCPU(),
			AcquireTimeout:  30 * time.Second,
		},
		Model: ModelConfig{
			Family: string(session.FamilyBiRefNet),
			Root:   session.DefaultModelRoot,
		},
		Session: SessionConfig{
			OptLevel:          "3",
			NumThreads:        runtime.NumCPU(),
			ParallelExecution: true,
			MemoryPattern:     true,
			Providers:         []string{"cpu"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Stats: StatsConfig{
			Cron: "@every 1m",
		},
	}
}

// Load 读取配置：默认值 <- yaml 文件 <- 环境变量（含 .env）。
// path 为空时跳过文件。
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("REMBG_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGIN"); v != "" {
		c.Server.CORSAllowOrigin = v
	}
	if v := os.Getenv("REMBG_MODEL"); v != "" {
		c.Model.Family = v
	}
	if v := os.Getenv("REMBG_MODEL_ROOT"); v != "" {
		c.Model.Root = v
	}
	if v := os.Getenv("ONNXRUNTIME_LIB"); v != "" {
		c.Model.LibraryPath = v
	}
	if v := os.Getenv("REMBG_PROVIDERS"); v != "" {
		c.Session.Providers = splitList(v)
	}
	if v := os.Getenv("REMBG_NUM_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REMBG_NUM_THREADS: %w", err)
		}
		c.Session.NumThreads = n
	}
	if v := os.Getenv("REMBG_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate 检查无法在运行时兜底的配置
func (c *Config) Validate() error {
	var errs []error
	if _, err := session.ParseFamily(c.Model.Family); err != nil {
		errs = append(errs, err)
	}
	if _, err := session.ParseOptLevel(c.Session.OptLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.maxUploadBytes must be positive"))
	}
	if c.Server.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("server.maxConcurrent must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) ModelFamily() (session.Family, error) {
	return session.ParseFamily(c.Model.Family)
}

// SessionOptions 转成会话配置
func (c *Config) SessionOptions() (*session.Options, error) {
	level, err := session.ParseOptLevel(c.Session.OptLevel)
	if err != nil {
		return nil, err
	}
	return session.NewOptions().
		WithOptLevel(level).
		WithNumThreads(c.Session.NumThreads).
		WithParallelExecution(c.Session.ParallelExecution).
		WithMemoryPattern(c.Session.MemoryPattern).
		WithProviders(c.Session.Providers...).
		WithModelRoot(c.Model.Root).
		Build()
}

func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:       c.Log.Level,
		Development: c.Log.Development,
		File:        c.Log.File,
		MaxSizeMB:   c.Log.MaxSizeMB,
		MaxBackups:  c.Log.MaxBackups,
		MaxAgeDays:  c.Log.MaxAgeDays,
		Compress:    c.Log.Compress,
	}
}
