package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/internal/core/sb"
)

// ============================================================================
// Fx 模块测试
// ============================================================================

// TestModule_Provides 测试模块提供注册表
func TestModule_Provides(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SB.EnableCommandTask = false

	var reg *prometheus.Registry
	app := fxtest.New(t,
		fx.Supply(cfg),
		sb.Module(),
		Module(),
		fx.Populate(&reg),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, reg)
	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["flightbus_sb_pipes_max"])
	assert.True(t, names["go_goroutines"])
}
