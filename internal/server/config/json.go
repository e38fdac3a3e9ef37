package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
	"github.com/dmitrijs2005/gophchat/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept both "30s" and
// integer nanoseconds.
type JsonConfig struct {
	HTTPAddr              string         `json:"http_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	StorageBackend        string         `json:"storage_backend"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`

	AIProvider     string         `json:"ai_provider"`
	AIBaseURL      string         `json:"ai_base_url"`
	AIAPIKey       string         `json:"ai_api_key"`
	AIModel        string         `json:"ai_model"`
	AISystemPrompt string         `json:"ai_system_prompt"`
	AITimeout      timex.Duration `json:"ai_timeout"`
	HistoryLimit   int            `json:"history_limit"`

	LeaseBackend  string         `json:"lease_backend"`
	LeaseTTL      timex.Duration `json:"lease_ttl"`
	RedisAddr     string         `json:"redis_addr"`
	RedisPassword string         `json:"redis_password"`
	RedisDB       int            `json:"redis_db"`

	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	CORSAllowedOrigins []string `json:"cors_allowed_origins"`
	LogLevel           string   `json:"log_level"`
	LogFormat          string   `json:"log_format"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:              c.HTTPAddr,
		DatabaseDSN:           c.DatabaseDSN,
		StorageBackend:        c.StorageBackend,
		SecretKey:             c.SecretKey,
		TokenValidityDuration: timex.Duration{Duration: c.TokenValidityDuration},
		AIProvider:            c.AIProvider,
		AIBaseURL:             c.AIBaseURL,
		AIAPIKey:              c.AIAPIKey,
		AIModel:               c.AIModel,
		AISystemPrompt:        c.AISystemPrompt,
		AITimeout:             timex.Duration{Duration: c.AITimeout},
		HistoryLimit:          c.HistoryLimit,
		LeaseBackend:          c.LeaseBackend,
		LeaseTTL:              timex.Duration{Duration: c.LeaseTTL},
		RedisAddr:             c.RedisAddr,
		RedisPassword:         c.RedisPassword,
		RedisDB:               c.RedisDB,
		S3AccessKey:           c.S3AccessKey,
		S3SecretKey:           c.S3SecretKey,
		S3Bucket:              c.S3Bucket,
		S3Region:              c.S3Region,
		S3BaseEndpoint:        c.S3BaseEndpoint,
		CORSAllowedOrigins:    c.CORSAllowedOrigins,
		LogLevel:              c.LogLevel,
		LogFormat:             c.LogFormat,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.StorageBackend = j.StorageBackend
	c.SecretKey = j.SecretKey
	c.TokenValidityDuration = j.TokenValidityDuration.Duration
	c.AIProvider = j.AIProvider
	c.AIBaseURL = j.AIBaseURL
	c.AIAPIKey = j.AIAPIKey
	c.AIModel = j.AIModel
	c.AISystemPrompt = j.AISystemPrompt
	c.AITimeout = j.AITimeout.Duration
	c.HistoryLimit = j.HistoryLimit
	c.LeaseBackend = j.LeaseBackend
	c.LeaseTTL = j.LeaseTTL.Duration
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.CORSAllowedOrigins = j.CORSAllowedOrigins
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
}

// parseJson overlays the JSON file named by -c/-config onto config. Keys
// absent from the file keep their current values.
func parseJson(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return decodeJson(data, config)
}

func decodeJson(data []byte, config *Config) error {
	j := toJson(config)
	if err := json.Unmarshal(data, j); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	j.apply(config)
	return nil
}
