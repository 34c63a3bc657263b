// Package config provides configuration management for headless.
package config

import (
	"github.com/jamesainslie/headless/pkg/headless/advisor"
	"github.com/jamesainslie/headless/pkg/headless/colima"
	"github.com/jamesainslie/headless/pkg/headless/homebrew"
	"github.com/jamesainslie/headless/pkg/headless/ollama"
)

// Default configuration values for headless.
const (
	// DefaultRetentionDays is how long history entries are kept by
	// `headless history clean`.
	DefaultRetentionDays = 90

	DefaultLogLevel      = "info"
	DefaultLogMaxSize    = "5MB"
	DefaultLogMaxAge     = 90
	DefaultLogMaxBackups = 3

	DefaultHomebrewPrefix = homebrew.DefaultPrefix

	DefaultOllamaLabel  = ollama.DefaultLabel
	DefaultOllamaHost   = ollama.DefaultHost
	DefaultOllamaAPIURL = ollama.DefaultAPIURL

	DefaultColimaProfile = colima.DefaultProfile
	DefaultColimaLabel   = colima.DefaultLabel
	DefaultColimaArch    = colima.DefaultArch
	DefaultColimaVMType  = colima.DefaultVMType
)

// DefaultProcessNames identify the inference server in the process table.
var DefaultProcessNames = []string{"ollama"}

// DefaultAdvisor returns the stock allocation heuristics.
func DefaultAdvisor() advisor.Config {
	return advisor.DefaultConfig()
}
