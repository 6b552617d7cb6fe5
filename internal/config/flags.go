package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/offsitebkp/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-staging string    staging directory on the NFS mount
//	-k int             off-site retention count (keep newest K)
//	-provider string   storage provider: s3 | azure
//	-log-file string   also log to this file
//	-log-level string  debug | info | warn | error
//
// Only these flags are parsed here; the main command owns the operation
// flags and filters its own subset of os.Args the same way.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-staging", "-k", "-provider", "-log-file", "-log-level",
	})

	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	fs.StringVar(&config.StagingDir, "staging", config.StagingDir, "staging directory holding backup sets")
	fs.IntVar(&config.RetentionCount, "k", config.RetentionCount, "number of newest off-site backup sets to keep")
	fs.StringVar(&config.StorageProvider, "provider", config.StorageProvider, "storage provider: s3 or azure")
	fs.StringVar(&config.LogFile, "log-file", config.LogFile, "log file path")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
