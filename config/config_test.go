package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "tabpool-backend/core/payment_job"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "3100", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.Store.Seed)
	assert.False(t, cfg.Engine.AutoDistribute)
	assert.Equal(t, "solana", cfg.QR.Scheme)
	assert.Equal(t, core.DefaultDecimals, cfg.QR.Decimals)
	assert.Empty(t, cfg.Auth.Bindings())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	wallet := core.DeriveIdentity("alice").String()
	t.Setenv("TABPOOL_STORE_DRIVER", "sqlite")
	t.Setenv("TABPOOL_ENGINE_AUTO_DISTRIBUTE", "true")
	t.Setenv("TABPOOL_SERVER_REQUEST_TIMEOUT", "5s")
	t.Setenv("TABPOOL_WALLET", wallet)
	t.Setenv("TABPOOL_AUTH_API_KEY", "secret")
	t.Setenv("TABPOOL_AUTH_API_WALLET", wallet)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.True(t, cfg.Engine.AutoDistribute)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)

	id, err := cfg.WalletIdentity()
	require.NoError(t, err)
	assert.Equal(t, wallet, id.String())

	bindings := cfg.Auth.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "secret", bindings[0].Key)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabpool.yaml")
	wallet := core.DeriveIdentity("bob").String()
	content := "server:\n  port: \"9000\"\nqr:\n  decimals: 6\nauth:\n  keys:\n    - key: k1\n      wallet: " + wallet + "\n      label: ops\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 6, cfg.QR.Decimals)
	require.Len(t, cfg.Auth.Bindings(), 1)
	assert.Equal(t, "ops", cfg.Auth.Bindings()[0].Label)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	cases := map[string]string{
		"TABPOOL_STORE_DRIVER": "mongo",
		"TABPOOL_QR_DECIMALS":  "30",
		"TABPOOL_WALLET":       "not-a-wallet",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("TABPOOL_STORE_DRIVER", "postgres")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing wallet", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		_, err = cfg.WalletIdentity()
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
}
