package di

import (
	"context"
	"testing"
	"time"

	"github.com/kcaldas/devkit/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, env string) config.Toolkit {
	t.Helper()
	return config.Toolkit{
		Env:     env,
		DataDir: t.TempDir(),
		Log:     config.Log{Level: "error"},
		Remote: config.Remote{
			Host:              "127.0.0.1",
			Port:              1,
			ReconnectInterval: time.Hour,
		},
		ProfilerInterval: time.Second,
		LeakInterval:     time.Hour,
		AuthToken:        "secret",
	}
}

func TestInitializeToolkit_WiresEveryPart(t *testing.T) {
	tk := InitializeToolkit(testConfig(t, config.EnvDevelopment))
	defer tk.Close()

	require.NotNil(t, tk.Store)
	assert.Equal(t, 4, tk.Pipeline.Len())
	assert.True(t, tk.Commands.Has("clearLogs"))
	assert.True(t, tk.Commands.Has("getDeviceInfo"))

	token, err := tk.Tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}

func TestInitializeToolkit_ProductionPersistsErrorEntries(t *testing.T) {
	tk := InitializeToolkit(testConfig(t, config.EnvProduction))
	defer tk.Close()

	tk.Log.Error("payment failed", "order", 42)

	records, err := tk.Store.ListErrors(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "payment failed", records[0].Message)
	assert.Equal(t, "error", records[0].Severity)
	assert.JSONEq(t, `{"order":42}`, records[0].Data)
}

func TestProvideStore_UnavailableDirIsTolerated(t *testing.T) {
	cfg := testConfig(t, config.EnvDevelopment)
	cfg.DataDir = "/dev/null/devkit"

	tk := InitializeToolkit(cfg)
	defer tk.Close()

	assert.Nil(t, tk.Store)
	_, err := tk.Commands.Execute(context.Background(), "clearLogs")
	assert.NoError(t, err)
}
