package config

import "os"

// parseEnv overlays secrets from the environment so credentials never have
// to live in the JSON file or appear in `ps` output via flags.
func parseEnv(config *Config) {
	overlay := map[string]*string{
		"OFFSITEBKP_PASSPHRASE":        &config.Passphrase,
		"OFFSITEBKP_S3_ACCESS_KEY":     &config.S3AccessKey,
		"OFFSITEBKP_S3_SECRET_KEY":     &config.S3SecretKey,
		"OFFSITEBKP_AZURE_ACCOUNT_KEY": &config.AzureAccountKey,
		"AZURE_STORAGE_CONNECTION_STRING": &config.AzureConnectionString,
	}

	for name, dst := range overlay {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
}
