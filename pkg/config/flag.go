package config

import (
	"fmt"
	"os"
)

// Flag holds the path of the configuration file.
// It implements pflag.Value.
type Flag struct {
	File  string
	IsSet bool
}

func (f *Flag) Set(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	f.File = path
	f.IsSet = true

	return nil
}

func (f *Flag) String() string {
	return f.File
}

func (f *Flag) Type() string {
	return "FILE"
}

// Load reads the configuration file on top of the defaults.
// When the flag has not been set explicitly a missing file is ignored.
func (f *Flag) Load() (Configuration, error) {
	if f.File == "" {
		return Defaults(), nil
	}

	if !f.IsSet {
		if _, err := os.Stat(f.File); os.IsNotExist(err) {
			return Defaults(), nil
		}
	}

	return FromFile(f.File)
}
