package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	viperlib "github.com/spf13/viper"
)

// NewViper returns a viper instance configured with the "::" key delimiter,
// matching the daemon's model identifiers (provider/model/sub) so dotted
// strings in config values are never mistaken for nested keys.
func NewViper() *viperlib.Viper {
	return viperlib.NewWithOptions(viperlib.KeyDelimiter("::"))
}

// Load resolves the config file using the lookup order: explicit path, then
// project-local .oss/config.json, then the user root's config.json. A
// missing file is not an error: Defaults() are written out and returned so
// subsequent runs see a stable config.json.
func Load(v *viperlib.Viper, explicitPath, projectRoot, userRoot string) (Config, error) {
	defaults := Defaults()

	v.SetConfigType("json")

	var configPath string
	switch {
	case explicitPath != "":
		configPath = explicitPath
	default:
		projectPath := filepath.Join(projectRoot, "config.json")
		if _, err := os.Stat(projectPath); err == nil {
			configPath = projectPath
		} else {
			configPath = filepath.Join(userRoot, "config.json")
		}
	}

	v.SetConfigFile(configPath)
	setDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		var notFound viperlib.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			if err := Save(configPath, defaults); err != nil {
				return Config{}, err
			}
			return defaults, nil
		}

		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viperlib.Viper, d Config) {
	raw, _ := json.Marshal(d)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	for k, val := range m {
		v.SetDefault(k, val)
	}
}
