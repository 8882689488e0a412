package config

import (
	"encoding/json"
	"os"

	"github.com/msavelyev-dev/teamcoach/internal/flagx"
	"github.com/msavelyev-dev/teamcoach/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "5m" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	CacheTTL           timex.Duration `json:"cache_ttl"`
	CacheMaxEntries    int            `json:"cache_max_entries"`
	CacheSweepInterval timex.Duration `json:"cache_sweep_interval"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config flags; if neither
// is set, no JSON file is loaded. Missing fields keep their current values.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFile()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.CacheTTL != 0 {
		config.CacheTTL = c.CacheTTL.Std()
	}
	if c.CacheMaxEntries != 0 {
		config.CacheMaxEntries = c.CacheMaxEntries
	}
	if c.CacheSweepInterval != 0 {
		config.CacheSweepInterval = c.CacheSweepInterval.Std()
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
