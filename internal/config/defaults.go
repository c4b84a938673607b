package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// RadicleHome returns the node's home directory: RAD_HOME when set,
// otherwise ~/.radicle.
func RadicleHome() string {
	if home := os.Getenv("RAD_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".radicle"
	}
	return filepath.Join(home, ".radicle")
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/radhttpd/
//   - Linux:   $XDG_CONFIG_HOME/radhttpd/ or ~/.config/radhttpd/
//   - Windows: %APPDATA%\radhttpd\
func PlatformConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "radhttpd")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "radhttpd")
		}
		return filepath.Join(home, "AppData", "Roaming", "radhttpd")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "radhttpd")
		}
		return filepath.Join(home, ".config", "radhttpd")
	}
}

// Paths below RadicleHome, as laid out by the node.
const (
	nodeDBFile     = "node/node.db"
	policiesDBFile = "node/policies.db"
	socketFile     = "node/control.sock"
	publicKeyFile  = "keys/radicle.pub"
)

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches the working directory and then the config
// directory. It returns "" when no config file exists.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func expandPath(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
