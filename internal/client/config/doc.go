// Package config loads runtime configuration for the gophchat CLI.
//
// Sources, later ones win:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file given with -c or -config.
//  3. Command-line flags:
//
//	-a string     base URL of the gophchat server
//	-t duration   request timeout, including the wait for an answer
//	-f string     path of the local session file
//	-o string     directory exported transcripts are saved to
//
// JSON keys are server_url, request_timeout, data_file and export_dir.
// Durations accept "90s" as well as integer nanoseconds.
package config
