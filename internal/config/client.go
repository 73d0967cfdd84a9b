package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ClientConfig is the terminal client's saved state, kept in
// ~/.config/rosenkoenig/client.yaml.
type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
	PlayerID  string `yaml:"player_id,omitempty"`
	Token     string `yaml:"token,omitempty"`
	// LastSession is reopened by "play" when no session id is given
	LastSession string `yaml:"last_session,omitempty"`
}

const (
	clientDir  = "rosenkoenig"
	clientFile = "client.yaml"
)

// DefaultClientPath returns the client config location under the user config dir
func DefaultClientPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, clientDir, clientFile), nil
}

// DefaultClientConfig returns a config pointing at a local server
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{ServerURL: "http://localhost:8080"}
}

// ReadClientConfig reads the client config at path. A missing file yields
// the defaults.
func ReadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultClientConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	cfg := DefaultClientConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	return cfg, nil
}

// WriteClientConfig writes cfg to path, creating parent directories. The
// file holds a bearer token so it is private to the user.
func WriteClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling client config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing client config: %w", err)
	}
	return nil
}
