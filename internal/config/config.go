// Package config handles runtime settings for the offsite backup tool,
// including defaults, JSON overlay, environment secrets and command-line
// flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/retention"
	"github.com/dmitrijs2005/offsitebkp/internal/staging"
)

// Storage provider names accepted in StorageProvider.
const (
	ProviderS3    = "s3"
	ProviderAzure = "azure"
)

// Config holds runtime settings for one invocation.
//
// Fields:
//   - StorageProvider: which remote store adapter to use ("s3" or "azure").
//   - StagingDir: NFS-mounted directory holding not-yet-uploaded backup sets.
//   - RetentionCount: how many off-site sets to keep (K).
//   - OnsiteRetentionCount: how many staged sets to keep when onsite cleanup runs.
//   - MinSetFiles: minimum file count for a staged directory to be a valid set.
//   - Passphrase: encryption passphrase; prefer OFFSITEBKP_PASSPHRASE or the
//     interactive prompt over putting it in a config file.
//   - OperationTimeout: overall deadline for one workflow invocation.
type Config struct {
	StorageProvider      string
	StagingDir           string
	RetentionCount       int
	OnsiteRetentionCount int
	MinSetFiles          int
	Passphrase           string
	OperationTimeout     time.Duration

	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string
	S3Prefix       string

	AzureAccountName      string
	AzureAccountKey       string
	AzureEndpoint         string
	AzureContainer        string
	AzureConnectionString string

	LogFile  string
	LogLevel string
}

// LoadDefaults populates Config with the operational defaults. Credentials
// have no defaults and must come from the JSON file, environment or flags.
func (c *Config) LoadDefaults() {
	c.StorageProvider = ProviderS3
	c.StagingDir = "/data1/network_dev_backups"
	c.RetentionCount = retention.DefaultKeepCount
	c.OnsiteRetentionCount = 2
	c.MinSetFiles = staging.DefaultMinSetFiles
	c.OperationTimeout = 1 * time.Hour
	c.S3Bucket = "network-dev-backups"
	c.S3Region = "us-east-1"
	c.AzureContainer = "network-dev-backups"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file (-c/-config), environment variables for
// secrets, and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate checks settings every operation depends on. Provider-specific
// credential checks happen when the store adapter is built.
func (c *Config) Validate() error {
	if c.StorageProvider != ProviderS3 && c.StorageProvider != ProviderAzure {
		return fmt.Errorf("%w: unknown storage provider %q", common.ErrValidation, c.StorageProvider)
	}
	if c.RetentionCount <= 0 {
		return fmt.Errorf("%w: retention count must be positive, got %d", common.ErrValidation, c.RetentionCount)
	}
	if c.StagingDir == "" {
		return fmt.Errorf("%w: staging directory is required", common.ErrValidation)
	}
	return nil
}
