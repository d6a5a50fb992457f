package ci

import (
	"errors"
	"fmt"
	"time"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/internal/core/msg"
)

// Config 指令注入应用配置
type Config struct {
	Enable      bool
	ListenAddr  string
	MaxIngest   int
	ReadTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("ci: listen addr is required")
	}
	if c.MaxIngest < msg.HeaderSize {
		return fmt.Errorf("ci: max ingest must be at least %d, got %d", msg.HeaderSize, c.MaxIngest)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("ci: read timeout must be positive")
	}
	return nil
}

// ConfigFromUnified 从统一配置创建指令注入配置
func ConfigFromUnified(cfg *config.Config) Config {
	cc := config.DefaultCommandIngestConfig()
	if cfg != nil {
		cc = cfg.CommandIngest
	}
	return Config{
		Enable:      cc.Enable,
		ListenAddr:  cc.ListenAddr,
		MaxIngest:   cc.MaxIngest,
		ReadTimeout: cc.ReadTimeout.Duration(),
	}
}
