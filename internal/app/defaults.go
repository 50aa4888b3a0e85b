package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults resolves where fieldsync keeps its config file, its device
// data and its logs. FIELDSYNC_CONFIG_PATH and FIELDSYNC_HOME override the
// locations under the user's home directory.
func GetDefaults() (map[string]string, error) {
	configPath, err := fromEnvOrHome("FIELDSYNC_CONFIG_PATH", ".config", "fieldsync.toml")
	if err != nil {
		return nil, err
	}
	home, err := fromEnvOrHome("FIELDSYNC_HOME", ".local", "share", "fieldsync")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    home,
		"log_dir":     filepath.Join(home, "log"),
	}, nil
}

// fromEnvOrHome returns $env when set, else rel joined under the home directory.
func fromEnvOrHome(env string, rel ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving %s: no home directory: %w", env, err)
	}
	return filepath.Join(append([]string{home}, rel...)...), nil
}
