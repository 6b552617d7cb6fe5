package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/offsitebkp/internal/common"
)

func restoreArgs(t *testing.T) {
	t.Helper()
	saved := os.Args
	t.Cleanup(func() { os.Args = saved })
}

func TestLoadConfig_Defaults(t *testing.T) {
	restoreArgs(t)
	os.Args = []string{"offsitebkp"}

	cfg := LoadConfig()

	assert.Equal(t, ProviderS3, cfg.StorageProvider)
	assert.Equal(t, "/data1/network_dev_backups", cfg.StagingDir)
	assert.Equal(t, 4, cfg.RetentionCount)
	assert.Equal(t, 2, cfg.OnsiteRetentionCount)
	assert.Equal(t, 3, cfg.MinSetFiles)
	assert.Equal(t, 1*time.Hour, cfg.OperationTimeout)
	assert.Equal(t, "network-dev-backups", cfg.S3Bucket)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_JSONOverlay(t *testing.T) {
	restoreArgs(t)

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"storage_provider": "azure",
		"staging_dir": "/mnt/backups",
		"retention_count": 7,
		"operation_timeout": "30m",
		"azure_container": "offsite"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	os.Args = []string{"offsitebkp", "-c", path}
	cfg := LoadConfig()

	assert.Equal(t, ProviderAzure, cfg.StorageProvider)
	assert.Equal(t, "/mnt/backups", cfg.StagingDir)
	assert.Equal(t, 7, cfg.RetentionCount)
	assert.Equal(t, 30*time.Minute, cfg.OperationTimeout)
	assert.Equal(t, "offsite", cfg.AzureContainer)

	// fields absent from the file keep their defaults
	assert.Equal(t, 2, cfg.OnsiteRetentionCount)
	assert.Equal(t, "us-east-1", cfg.S3Region)
}

func TestLoadConfig_FlagsWinOverJSON(t *testing.T) {
	restoreArgs(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"retention_count": 7}`), 0o600))

	os.Args = []string{"offsitebkp", "-c", path, "-k", "9", "-staging", "/tmp/stage"}
	cfg := LoadConfig()

	assert.Equal(t, 9, cfg.RetentionCount)
	assert.Equal(t, "/tmp/stage", cfg.StagingDir)
}

func TestLoadConfig_EnvSecrets(t *testing.T) {
	restoreArgs(t)
	os.Args = []string{"offsitebkp"}

	t.Setenv("OFFSITEBKP_PASSPHRASE", "s3cret")
	t.Setenv("OFFSITEBKP_S3_ACCESS_KEY", "AKIAEXAMPLE")
	t.Setenv("OFFSITEBKP_S3_SECRET_KEY", "shhh")

	cfg := LoadConfig()

	assert.Equal(t, "s3cret", cfg.Passphrase)
	assert.Equal(t, "AKIAEXAMPLE", cfg.S3AccessKey)
	assert.Equal(t, "shhh", cfg.S3SecretKey)
}

func TestParseJSON_BadFilePanics(t *testing.T) {
	restoreArgs(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	os.Args = []string{"offsitebkp", "-config", path}
	assert.Panics(t, func() { LoadConfig() })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"azure is valid", func(c *Config) { c.StorageProvider = ProviderAzure }, false},
		{"unknown provider", func(c *Config) { c.StorageProvider = "ftp" }, true},
		{"zero retention", func(c *Config) { c.RetentionCount = 0 }, true},
		{"negative retention", func(c *Config) { c.RetentionCount = -1 }, true},
		{"empty staging dir", func(c *Config) { c.StagingDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.LoadDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
