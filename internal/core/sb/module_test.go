package sb

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
)

func smallUnifiedConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.SB.MaxPipes = 8
	cfg.SB.BufferCount = 8
	cfg.SB.BufferSize = 512
	return cfg
}

// TestModule 测试 Fx 模块装配与生命周期
func TestModule(t *testing.T) {
	var (
		bus  interfaces.SoftwareBus
		task *Task
	)

	app := fxtest.New(t,
		fx.Supply(smallUnifiedConfig()),
		fx.Provide(func() clock.Clock { return clock.New() }),
		Module(),
		fx.Populate(&bus, &task),
	)
	app.RequireStart()

	require.NotNil(t, bus)
	require.NotNil(t, task)
	_, err := bus.GetPipeIDByName(CmdPipeName)
	assert.NoError(t, err, "command task pipe exists after start")
	assert.Equal(t, 8, bus.Stats().MaxPipes)

	app.RequireStop()
	assert.Zero(t, bus.Stats().PipesInUse)
}

// TestModule_NoCommandTask 禁用指令任务
func TestModule_NoCommandTask(t *testing.T) {
	cfg := smallUnifiedConfig()
	cfg.SB.EnableCommandTask = false

	var (
		bus  *Bus
		task *Task
	)
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&bus, &task),
	)
	app.RequireStart()
	assert.Nil(t, task)
	assert.Zero(t, bus.Stats().PipesInUse)
	app.RequireStop()
}

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))

	cfg := config.NewConfig()
	cfg.SB.DropPolicy = "drop-oldest"
	got := ConfigFromUnified(cfg)
	assert.NoError(t, got.Validate())
	assert.Equal(t, cfg.SB.BufferCount, got.Pool.BufferCount)
	assert.Equal(t, cfg.SB.MaxRoutes, got.Routing.MaxRoutes)
	assert.Equal(t, "drop-oldest", got.DropPolicy.String())
}
