package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/authkit/internal/flagx"
	"github.com/dmitrijs2005/authkit/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Durations accept "15m" or nanoseconds.
// Absent or zero fields keep the value already in Config.
type fileConfig struct {
	HTTPAddr       string         `json:"http_addr" yaml:"http_addr" toml:"http_addr"`
	GRPCAddr       string         `json:"grpc_addr" yaml:"grpc_addr" toml:"grpc_addr"`
	DatabaseDSN    string         `json:"database_dsn" yaml:"database_dsn" toml:"database_dsn"`
	KeySource      string         `json:"key_source" yaml:"key_source" toml:"key_source"`
	PwdKey         string         `json:"pwd_key" yaml:"pwd_key" toml:"pwd_key"`
	TokenKey       string         `json:"token_key" yaml:"token_key" toml:"token_key"`
	TokenDuration  timex.Duration `json:"token_duration" yaml:"token_duration" toml:"token_duration"`
	HashWorkers    int            `json:"hash_workers" yaml:"hash_workers" toml:"hash_workers"`
	HashQueueSize  int            `json:"hash_queue_size" yaml:"hash_queue_size" toml:"hash_queue_size"`
	RedisURL       string         `json:"redis_url" yaml:"redis_url" toml:"redis_url"`
	SaltCacheTTL   timex.Duration `json:"salt_cache_ttl" yaml:"salt_cache_ttl" toml:"salt_cache_ttl"`
	S3Region       string         `json:"s3_region" yaml:"s3_region" toml:"s3_region"`
	S3AccessKey    string         `json:"s3_access_key" yaml:"s3_access_key" toml:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key" yaml:"s3_secret_key" toml:"s3_secret_key"`
	S3BaseEndpoint string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint" toml:"s3_base_endpoint"`
	S3Bucket       string         `json:"s3_bucket" yaml:"s3_bucket" toml:"s3_bucket"`
	S3KeyObject    string         `json:"s3_key_object" yaml:"s3_key_object" toml:"s3_key_object"`
	LogLevel       string         `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// parseFile overlays the file named by -c/-config, if any. The format is
// chosen by extension.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &fileConfig{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	case ".toml":
		err = toml.Unmarshal(data, fc)
	default:
		return fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfig, ext)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.KeySource, fc.KeySource)
	setString(&cfg.PwdKey, fc.PwdKey)
	setString(&cfg.TokenKey, fc.TokenKey)
	setString(&cfg.RedisURL, fc.RedisURL)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.S3SecretKey, fc.S3SecretKey)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3KeyObject, fc.S3KeyObject)
	setString(&cfg.LogLevel, fc.LogLevel)

	if fc.TokenDuration.Duration != 0 {
		cfg.TokenDuration = fc.TokenDuration.Duration
	}
	if fc.SaltCacheTTL.Duration != 0 {
		cfg.SaltCacheTTL = fc.SaltCacheTTL.Duration
	}
	if fc.HashWorkers != 0 {
		cfg.HashWorkers = fc.HashWorkers
	}
	if fc.HashQueueSize != 0 {
		cfg.HashQueueSize = fc.HashQueueSize
	}
}
