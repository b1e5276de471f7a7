package dirs

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "epfetch"

// ConfigDir returns the per-user configuration directory without creating it.
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(configDir, appName), nil
	}

	// Fallback to executable location
	exePath, exeErr := os.Executable()
	if exeErr != nil {
		return "", fmt.Errorf("failed to find config directory: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), appName+"-data"), nil
}

// GetSaveDirectory returns the directory where files should be saved,
// relative paths are resolved against the working directory.
func GetSaveDirectory(customSaveDirectory string) (string, error) {
	if customSaveDirectory != "" && filepath.IsAbs(customSaveDirectory) {
		return customSaveDirectory, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return filepath.Join(cwd, customSaveDirectory), nil
}

// SeriesDirectory is the folder one series is saved to.
func SeriesDirectory(saveDir, folderName string) string {
	if folderName == "" {
		return saveDir
	}
	return filepath.Join(saveDir, folderName)
}
