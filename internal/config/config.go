// Package config loads the shared mailsift configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds settings shared by the fetch and apply commands. Command
// flags override anything set here.
type Config struct {
	Auth  AuthConfig  `toml:"auth"`
	Store StoreConfig `toml:"store"`
	Fetch FetchConfig `toml:"fetch"`
	Apply ApplyConfig `toml:"apply"`
}

// AuthConfig locates the Gmail OAuth credential directory.
type AuthConfig struct {
	CredentialsDir string `toml:"credentials_dir"`
}

// StoreConfig locates the local record database and rule document.
type StoreConfig struct {
	DBPath    string `toml:"db_path"`
	RulesPath string `toml:"rules_path"`
}

// FetchConfig holds fetch-run settings.
type FetchConfig struct {
	MaxResults int `toml:"max_results"`
	PageSize   int `toml:"page_size"`
	RPS        int `toml:"rps"`
}

// ApplyConfig holds apply-run settings.
type ApplyConfig struct {
	Workers int `toml:"workers"`
	RPS     int `toml:"rps"`
}

func defaults() Config {
	return Config{
		Auth:  AuthConfig{CredentialsDir: os.ExpandEnv("$HOME/.gmailctl")},
		Store: StoreConfig{DBPath: filepath.Join(Dir(), "mailsift.db"), RulesPath: filepath.Join(Dir(), "rules.json")},
		Fetch: FetchConfig{MaxResults: 50, PageSize: 500, RPS: 4},
		Apply: ApplyConfig{Workers: 4, RPS: 4},
	}
}

// Load reads config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Dir returns the mailsift config directory path.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailsift")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mailsift")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}
