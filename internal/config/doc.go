// Package config loads vestique settings from a TOML file, an optional
// .env file and the environment.
//
// Resolution order: built-in defaults, then the config file, then
// environment variables for secrets that are still empty. Paths beginning
// with ~ are expanded and made absolute.
package config
