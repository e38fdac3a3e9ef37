package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
)

func parseFlags(cfg *Config) error {
	return parseFlagArgs(cfg, os.Args[1:])
}

func parseFlagArgs(cfg *Config, argv []string) error {
	args := flagx.FilterArgs(argv, []string{"-a", "-t", "-f", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")
	fs.StringVar(&cfg.DataFile, "f", cfg.DataFile, "local session file")
	fs.StringVar(&cfg.ExportDir, "o", cfg.ExportDir, "directory for exported transcripts")

	return fs.Parse(args)
}
