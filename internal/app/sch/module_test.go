package sch

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
)

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SB.EnableCommandTask = false

	var (
		app *App
		bus interfaces.SoftwareBus
	)
	fxApp := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(func() clock.Clock { return clock.NewMock() }),
		sb.Module(),
		Module(),
		fx.Populate(&app, &bus),
	)
	fxApp.RequireStart()
	require.NotNil(t, app)
	_, err := bus.GetPipeIDByName(CmdPipeName)
	assert.NoError(t, err)
	fxApp.RequireStop()
}

func TestModule_Disabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Scheduler.Enable = false

	var app *App
	fxApp := fxtest.New(t,
		fx.Supply(cfg),
		sb.Module(),
		Module(),
		fx.Populate(&app),
	)
	defer fxApp.RequireStart().RequireStop()
	assert.Nil(t, app)
}
