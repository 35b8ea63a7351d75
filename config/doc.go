// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including the server address, the rewrite rule declarations, upstream health
// probing, and logging settings.
package config
