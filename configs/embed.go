// Package configs embeds the configuration templates of settingsearch.
package configs

import _ "embed"

// UserConfigTemplate is written by `settingsearch config init`. Every
// value matches the built-in defaults.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
