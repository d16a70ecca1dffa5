package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/authkit/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-a string    HTTP bind address
//	-g string    gRPC bind address
//	-d string    PostgreSQL DSN
//	-p string    password key (base64url)
//	-s string    token key (base64url)
//	-k string    key source: config | s3
//	-t duration  token lifetime, e.g. 30m
//	-w int       hashing workers (0 = NumCPU)
//	-q int       hashing queue size (0 = 4 per worker)
//	-r string    redis URL for the salt cache (empty disables it)
//	-l string    log level
//
// Only these flags are taken from args; the rest are left to other parsers.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-p", "-s", "-k", "-t", "-w", "-q", "-r", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP address and port")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC address and port")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.PwdKey, "p", cfg.PwdKey, "password key, base64url")
	fs.StringVar(&cfg.TokenKey, "s", cfg.TokenKey, "token key, base64url")
	fs.StringVar(&cfg.KeySource, "k", cfg.KeySource, "key source: config or s3")
	fs.DurationVar(&cfg.TokenDuration, "t", cfg.TokenDuration, "token lifetime")
	fs.IntVar(&cfg.HashWorkers, "w", cfg.HashWorkers, "hashing workers")
	fs.IntVar(&cfg.HashQueueSize, "q", cfg.HashQueueSize, "hashing queue size")
	fs.StringVar(&cfg.RedisURL, "r", cfg.RedisURL, "redis URL for the salt cache")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
