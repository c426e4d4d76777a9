package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
bot:
  token: "123:abc"
  admins: [7, 8]
shop:
  offers:
    - category: premium
      key: tg_3m
      label: "Telegram Premium 3 months"
      price: 165000
`

func writeConfig(t *testing.T, env, body string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", env+".yaml"), []byte(body), 0o600))
	t.Chdir(dir)
	t.Setenv("APP_ENV", env)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	writeConfig(t, "test", minimalYAML)

	cfg, v, err := Load()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "polling", cfg.Bot.Mode)
	assert.Equal(t, []int64{7, 8}, cfg.Bot.Admins)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, int64(1000), cfg.Shop.TopUpMin)
	assert.Equal(t, 3*time.Second, cfg.Engine.LockWait)
	assert.Equal(t, "@every 15m", cfg.Jobs.ReminderSchedule)
	require.Len(t, cfg.Shop.Offers, 1)
	assert.Equal(t, int64(165000), cfg.Shop.Offers[0].Price)
	assert.True(t, cfg.Bot.IsAdmin(8))
	assert.False(t, cfg.Bot.IsAdmin(9))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	writeConfig(t, "test", minimalYAML)
	t.Setenv("SHOP_REFERRAL_BONUS", "250")
	t.Setenv("LOGGER_LEVEL", "warn")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.Shop.ReferralBonus)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "nowhere")

	_, _, err := Load()
	assert.Error(t, err)
}

func TestDecode_Validation(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{name: "missing token", set: map[string]any{"bot.token": ""}},
		{name: "no admins", set: map[string]any{"bot.admins": []int64{}}},
		{name: "webhook without url", set: map[string]any{"bot.mode": "webhook"}},
		{name: "unknown mode", set: map[string]any{"bot.mode": "push"}},
		{name: "inverted top-up bounds", set: map[string]any{"shop.topup_max": 10}},
		{name: "bad log level", set: map[string]any{"logger.level": "loud"}},
		{name: "redis without addr", set: map[string]any{"redis.enabled": true, "redis.addr": ""}},
		{name: "unknown category", set: map[string]any{"shop.offers": []map[string]any{
			{"category": "skins", "key": "x", "label": "X", "price": 1},
		}}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			v.Set("bot.token", "123:abc")
			v.Set("bot.admins", []int64{7})
			for key, value := range tc.set {
				v.Set(key, value)
			}

			_, err := decode(v)
			assert.Error(t, err)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", User: "shop", Password: "secret", Name: "orders", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=shop password=secret dbname=orders sslmode=disable", cfg.DSN())
}
