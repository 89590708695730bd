// Package config loads the runtime configuration of the web interface and the
// announcer from YAML files, environment variables and CLI flags with
// precedence: CLI flags > YAML config > Environment variables > Defaults.
// The venue configuration edited through the web interface is a separate INI
// file; this package only records its path.
package config
