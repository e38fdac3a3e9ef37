package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
)

var flagNames = []string{"-a", "-d", "-m", "-s", "-t", "-ai", "-u", "-l", "-log"}

// parseFlags populates selected server Config fields from command-line flags.
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-d string     PostgreSQL DSN
//	-m string     storage backend: postgres | memory
//	-s string     JWT HMAC secret key
//	-t duration   token validity (e.g. "24h")
//	-ai string    AI provider: http | openai
//	-u string     AI base URL
//	-l string     lease backend: none | local | redis
//	-log string   log level
//
// os.Args is filtered with flagx.FilterArgs first so flags owned by other
// components (such as -c) are not rejected.
func parseFlags(config *Config) error {
	return parseFlagArgs(config, os.Args[1:])
}

func parseFlagArgs(config *Config, argv []string) error {
	args := flagx.FilterArgs(argv, flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "m", config.StorageBackend, "storage backend (postgres, memory)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.TokenValidityDuration, "t", config.TokenValidityDuration, "token validity duration")
	fs.StringVar(&config.AIProvider, "ai", config.AIProvider, "AI provider (http, openai)")
	fs.StringVar(&config.AIBaseURL, "u", config.AIBaseURL, "AI service base URL")
	fs.StringVar(&config.LeaseBackend, "l", config.LeaseBackend, "conversation lease backend (none, local, redis)")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level (debug, info, warn, error)")

	return fs.Parse(args)
}
