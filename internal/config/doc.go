// Package config loads the back-office server configuration.
package config
