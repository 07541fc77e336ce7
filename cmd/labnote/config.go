package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL  = "http://localhost:8000"
	defaultProvider = "labnote"
	defaultFeature  = "summarize"
)

// fileConfig is the optional YAML config file.
type fileConfig struct {
	BaseURL     string `yaml:"base_url"`
	Token       string `yaml:"token"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Feature     string `yaml:"feature"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// flags holds command-line values. Empty strings mean "not set".
type flags struct {
	configPath  string
	baseURL     string
	token       string
	provider    string
	apiKey      string
	feature     string
	content     string
	notes       string
	message     string
	glob        string
	dir         string
	model       string
	out         string
	metricsAddr string
	tui         bool
	verbose     bool
}

// environment holds the env vars the command reads. Env is only read in run.
type environment struct {
	token     string // LABNOTE_TOKEN
	baseURL   string // LABNOTE_BASE_URL
	geminiKey string // GEMINI_API_KEY
}

// config is the resolved configuration.
type config struct {
	baseURL     string
	token       string
	provider    string
	apiKey      string
	model       string
	feature     string
	metricsAddr string
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".labnote", "config.yaml")
}

// loadConfig reads the YAML file at path. A missing file at the default path
// is not an error.
func loadConfig(path string, isDefault bool) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && isDefault:
		return fc, nil
	default:
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// resolveConfig merges the sources with precedence flag > env > file >
// default.
func resolveConfig(f flags, env environment, fc fileConfig) config {
	return config{
		baseURL:     first(f.baseURL, env.baseURL, fc.BaseURL, defaultBaseURL),
		token:       first(f.token, env.token, fc.Token),
		provider:    first(f.provider, fc.Provider, defaultProvider),
		apiKey:      first(f.apiKey, env.geminiKey),
		model:       first(f.model, fc.Model),
		feature:     first(f.feature, fc.Feature, defaultFeature),
		metricsAddr: first(f.metricsAddr, fc.MetricsAddr),
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
