package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cloudra/internal/flagx"
	"github.com/dmitrijs2005/cloudra/internal/timex"
)

// JsonConfig mirrors Config for JSON decoding. Durations accept either a
// duration string ("15m") or integer nanoseconds. Only keys present in the
// file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	S3AccessKeyID               *string         `json:"s3_access_key_id"`
	S3SecretAccessKey           *string         `json:"s3_secret_access_key"`
	S3Bucket                    *string         `json:"s3_bucket"`
	S3Region                    *string         `json:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL             *string         `json:"s3_public_base_url"`
	UploadURLValidityDuration   *timex.Duration `json:"upload_url_validity_duration"`
	FrontendURL                 *string         `json:"frontend_url"`
}

// parseJson overlays values from the JSON file given with -c/-config.
// Without the flag nothing happens; an unreadable or malformed file panics,
// since the server cannot start with a half-applied configuration.
func parseJson(config *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3AccessKeyID, c.S3AccessKeyID)
	setString(&config.S3SecretAccessKey, c.S3SecretAccessKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.FrontendURL, c.FrontendURL)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.UploadURLValidityDuration != nil {
		config.UploadURLValidityDuration = c.UploadURLValidityDuration.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
