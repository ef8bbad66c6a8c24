package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// LoadYAMLConfig load config from filename in YAML format. ${VAR} references
// are expanded from the environment first.
func LoadYAMLConfig(filename string, cfg interface{}) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("ReadFile: %v", err)
	}
	return yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg)
}

// LoadEnv loads variables from a .env file if one exists. Variables already
// set in the environment win.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, f := range filenames {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func InitConfig(configPath string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	conf := DefaultConfig()
	err := LoadYAMLConfig(configPath, conf)
	if err != nil {
		return nil, err
	}

	return conf, nil
}
