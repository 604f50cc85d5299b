package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile returns the location of the per-user configuration file.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "wakelauncher.yaml"
	}

	return filepath.Join(dir, "wakelauncher", "config.yaml")
}

// FromFile reads the YAML file at path on top of the defaults.
func FromFile(path string) (Configuration, error) {
	return Merge(Defaults(), path)
}

// Merge reads the YAML file at path on top of the given configuration.
// Fields that are not specified within the file keep their value.
func Merge(cfg Configuration, path string) (Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	m := map[string]any{}

	err = yaml.Unmarshal(b, &m)
	if err != nil {
		return cfg, fmt.Errorf("read config at %s: %w", path, err)
	}

	b, err = json.Marshal(m)
	if err != nil {
		return cfg, fmt.Errorf("load config: marshal config: %w", err)
	}

	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()

	err = d.Decode(&cfg)
	if err != nil {
		return cfg, fmt.Errorf("read config at %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDotEnv exports the variables of the given .env file into the process environment.
// Variables that are already set are not overwritten and a missing file is not an error.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}

	err := godotenv.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("load env file %s: %w", path, err)
	}

	return true, nil
}

// AccessKeyFromEnv fills in the Picovoice access key from the environment when it is not configured.
func (c *Configuration) AccessKeyFromEnv() {
	if c.AccessKey == "" {
		c.AccessKey = os.Getenv("PICOVOICE_ACCESS_KEY")
	}
}
