package config

import "time"

type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
	DataFile       string
	ExportDir      string
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 60 * time.Second
	c.DataFile = "gophchat.db"
	c.ExportDir = "."
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
