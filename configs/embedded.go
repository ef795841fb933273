// Package configs provides the embedded example configuration for smart-url-view.
package configs

import "embed"

// ExampleConfigFile is the name of the example configuration inside EmbeddedConfigs.
const ExampleConfigFile = "config.example.yaml"

// EmbeddedConfigs exposes embedded configuration files for read-only access.
//
//go:embed *.yaml
var EmbeddedConfigs embed.FS
