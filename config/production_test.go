package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "campaign_sender", User: "postgres", Password: "secret"},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Cache:   CacheConfig{Enabled: true, Provider: "redis", RedisURL: "redis://localhost:6379"},
		Sending: SendingConfig{
			RecheckInterval:      time.Second,
			JanitorInterval:      time.Minute,
			EngineRetention:      time.Hour,
			MaxRecipients:        10,
			SimulatedSuccessRate: 1,
			PersistRetryAttempts: 3,
		},
		Pricing:    PricingConfig{PricePerMessage: 0.05, Currency: "USD"},
		Deployment: DeploymentConfig{Environment: "production"},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProductionConfig)
		wantErr []string
	}{
		{name: "valid", mutate: func(*ProductionConfig) {}},
		{
			name:    "missing password in production",
			mutate:  func(c *ProductionConfig) { c.Database.Password = "" },
			wantErr: []string{"DB_PASSWORD is required"},
		},
		{
			name: "missing password outside production",
			mutate: func(c *ProductionConfig) {
				c.Database.Password = ""
				c.Deployment.Environment = "development"
			},
		},
		{
			name:    "bad log level",
			mutate:  func(c *ProductionConfig) { c.Logging.Level = "verbose" },
			wantErr: []string{"LOG_LEVEL must be one of"},
		},
		{
			name: "file output without path",
			mutate: func(c *ProductionConfig) {
				c.Logging.Output = "file"
				c.Logging.FilePath = ""
			},
			wantErr: []string{"LOG_FILE_PATH is required"},
		},
		{
			name: "engine settings",
			mutate: func(c *ProductionConfig) {
				c.Sending.RecheckInterval = 0
				c.Sending.SimulatedSuccessRate = 1.5
				c.Sending.MaxRecipients = 0
			},
			wantErr: []string{
				"SENDING_RECHECK_INTERVAL must be positive",
				"SENDING_SIMULATED_SUCCESS_RATE must be between 0 and 1",
				"SENDING_MAX_RECIPIENTS must be positive",
			},
		},
		{
			name:    "redis url required",
			mutate:  func(c *ProductionConfig) { c.Cache.RedisURL = "" },
			wantErr: []string{"CACHE_REDIS_URL is required"},
		},
		{
			name:    "pricing",
			mutate:  func(c *ProductionConfig) { c.Pricing.Currency = "" },
			wantErr: []string{"PRICING_CURRENCY is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadProductionConfigFromEnv(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("SENDING_RECHECK_INTERVAL", "250ms")
	t.Setenv("SENDING_SIMULATED_SUCCESS_RATE", "0.9")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Sending.RecheckInterval)
	assert.InDelta(t, 0.9, cfg.Sending.SimulatedSuccessRate, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=campaign_sender sslmode=require", cfg.Database.DSN())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"# comment",
		"CS_TEST_PLAIN=plain",
		`CS_TEST_QUOTED="quoted value"`,
		"export CS_TEST_EXPORTED='x'",
		"CS_TEST_PRESET=from-file",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CS_TEST_PRESET", "from-env")
	for _, key := range []string{"CS_TEST_PLAIN", "CS_TEST_QUOTED", "CS_TEST_EXPORTED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "plain", os.Getenv("CS_TEST_PLAIN"))
	assert.Equal(t, "quoted value", os.Getenv("CS_TEST_QUOTED"))
	assert.Equal(t, "x", os.Getenv("CS_TEST_EXPORTED"))
	assert.Equal(t, "from-env", os.Getenv("CS_TEST_PRESET"))

	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, closer := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	logger.Debug("engine started", slog.String("run_id", "r-1"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"r-1"`)

	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel(""))
}
