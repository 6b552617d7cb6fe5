package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/offsitebkp/internal/flagx"
	"github.com/dmitrijs2005/offsitebkp/internal/timex"
)

// jsonConfig is the DTO for the optional JSON config file. It mirrors Config
// but uses timex.Duration so intervals can be written either as strings such
// as "30m" or as integer nanoseconds.
type jsonConfig struct {
	StorageProvider      *string         `json:"storage_provider"`
	StagingDir           *string         `json:"staging_dir"`
	RetentionCount       *int            `json:"retention_count"`
	OnsiteRetentionCount *int            `json:"onsite_retention_count"`
	MinSetFiles          *int            `json:"min_set_files"`
	Passphrase           *string         `json:"passphrase"`
	OperationTimeout     *timex.Duration `json:"operation_timeout"`

	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3Prefix       *string `json:"s3_prefix"`

	AzureAccountName      *string `json:"azure_account_name"`
	AzureAccountKey       *string `json:"azure_account_key"`
	AzureEndpoint         *string `json:"azure_endpoint"`
	AzureContainer        *string `json:"azure_container"`
	AzureConnectionString *string `json:"azure_connection_string"`

	LogFile  *string `json:"log_file"`
	LogLevel *string `json:"log_level"`
}

// parseJSON overlays values from the JSON file named by -c/-config, when
// present. Absent fields keep their current (default) values. An unreadable
// or malformed file panics: a misconfigured backup run must not proceed.
func parseJSON(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.StorageProvider, c.StorageProvider)
	setString(&config.StagingDir, c.StagingDir)
	setInt(&config.RetentionCount, c.RetentionCount)
	setInt(&config.OnsiteRetentionCount, c.OnsiteRetentionCount)
	setInt(&config.MinSetFiles, c.MinSetFiles)
	setString(&config.Passphrase, c.Passphrase)
	if c.OperationTimeout != nil {
		config.OperationTimeout = time.Duration(c.OperationTimeout.Duration)
	}

	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Prefix, c.S3Prefix)

	setString(&config.AzureAccountName, c.AzureAccountName)
	setString(&config.AzureAccountKey, c.AzureAccountKey)
	setString(&config.AzureEndpoint, c.AzureEndpoint)
	setString(&config.AzureContainer, c.AzureContainer)
	setString(&config.AzureConnectionString, c.AzureConnectionString)

	setString(&config.LogFile, c.LogFile)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
