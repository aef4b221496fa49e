package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	t.Setenv("SHOPSPHERE_ENV", Test)
	Reset()
	t.Cleanup(Reset)

	cfg := GetConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "shopsphere", cfg.AppName)
	assert.True(t, cfg.IsTest())
	assert.Equal(t, 5*time.Second, cfg.FlushInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 1000, cfg.QueueCapacity)
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.Contains(t, cfg.DatabaseDSN(), "shopsphere-test.db")
}

func TestGetConfigEnvOverrides(t *testing.T) {
	t.Setenv("SHOPSPHERE_ENV", Test)
	t.Setenv("SHOPSPHERE_FLUSH_INTERVAL_SECONDS", "2")
	t.Setenv("SHOPSPHERE_QUEUE_CAPACITY", "50")
	t.Setenv("SHOPSPHERE_TRACKER_ENDPOINT", "http://collector:9000")
	Reset()
	t.Cleanup(Reset)

	cfg := GetConfig()
	assert.Equal(t, 2*time.Second, cfg.FlushInterval())
	assert.Equal(t, 50, cfg.QueueCapacity)
	assert.Equal(t, "http://collector:9000", cfg.TrackerEndpoint)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment:           Test,
			DatabaseType:          SQLiteDatabase,
			PrivateKey:            defaultPrivateKey,
			FlushIntervalSeconds:  5,
			QueueCapacity:         10,
			RequestTimeoutSeconds: 10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown environment", mutate: func(c *Config) { c.Environment = "staging" }, wantErr: true},
		{name: "unknown database", mutate: func(c *Config) { c.DatabaseType = "postgres" }, wantErr: true},
		{name: "empty key", mutate: func(c *Config) { c.PrivateKey = "" }, wantErr: true},
		{name: "zero flush interval", mutate: func(c *Config) { c.FlushIntervalSeconds = 0 }, wantErr: true},
		{name: "zero queue capacity", mutate: func(c *Config) { c.QueueCapacity = 0 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeoutSeconds = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
