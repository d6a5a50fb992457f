package flightbus

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/internal/app"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config    *config.Config
	bootstrap []app.BootstrapOption
}

// newOptions 应用选项，未指定配置时使用默认配置
func newOptions(opts ...Option) (*options, error) {
	o := &options{config: config.NewConfig()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithConfig 使用给定配置，后续选项在其副本上修改
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrNilConfig
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 在当前配置上叠加预设（minimal/default/large）
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithLogLevel 设置日志级别规格，例如 "info" 或 "warn,core/sb=debug"
func WithLogLevel(spec string) Option {
	return func(o *options) error {
		o.config.Log.Level = spec
		return nil
	}
}

// WithIntrospect 启用自省服务并监听 addr
func WithIntrospect(addr string) Option {
	return func(o *options) error {
		if addr == "" {
			return fmt.Errorf("introspect addr is empty")
		}
		o.config.Introspect.Enable = true
		o.config.Introspect.Addr = addr
		return nil
	}
}

// WithClock 设置时钟，测试中可传入 clock.Mock
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.bootstrap = append(o.bootstrap, app.WithClock(clk))
		return nil
	}
}

// WithInstanceID 使用固定的实例标识
func WithInstanceID(id types.InstanceID) Option {
	return func(o *options) error {
		o.bootstrap = append(o.bootstrap, app.WithInstanceID(id))
		return nil
	}
}

// WithFxLogger 输出 fx 依赖注入事件
func WithFxLogger(l *zap.Logger) Option {
	return func(o *options) error {
		o.bootstrap = append(o.bootstrap, app.WithFxLogger(l))
		return nil
	}
}

// WithFxOptions 追加自定义 fx 选项，例如注册额外的应用模块
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.bootstrap = append(o.bootstrap, app.WithFxOptions(opts...))
		return nil
	}
}
