// Package paths resolves hostsync's configuration location following the
// XDG Base Directory Specification, and the platform's hosts file.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appName = "hostsync"

// Paths holds all resolved paths for the application.
type Paths struct {
	// ConfigDir is the directory for configuration files.
	// XDG: $XDG_CONFIG_HOME/hostsync or ~/.config/hostsync
	ConfigDir string

	// ConfigFile is the path to the main configuration file.
	ConfigFile string

	// HostsFile is the system hosts file.
	HostsFile string
}

var (
	defaultPaths *Paths
	pathsOnce    sync.Once
)

// Default returns the default paths for the current system.
// The result is cached after the first call.
func Default() *Paths {
	pathsOnce.Do(func() {
		defaultPaths = resolve()
	})
	return defaultPaths
}

func resolve() *Paths {
	p := &Paths{}

	// When running as root, use system-wide paths
	if os.Geteuid() == 0 {
		p.ConfigDir = filepath.Join("/etc", appName)
	} else {
		p.ConfigDir = resolveConfigDir(homeDir())
	}

	p.ConfigFile = filepath.Join(p.ConfigDir, "config.yaml")
	p.HostsFile = resolveHostsFile()

	return p
}

// resolveConfigDir determines the configuration directory.
func resolveConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(home, ".config", appName)
}

// resolveHostsFile returns the hosts file for the running platform.
func resolveHostsFile() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

// homeDir returns the user's home directory.
func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home := os.Getenv("USERPROFILE"); home != "" {
		return home
	}
	return "/"
}

// EnsureConfigDir creates the configuration directory with mode 0700.
func (p *Paths) EnsureConfigDir() error {
	return os.MkdirAll(p.ConfigDir, 0700)
}

// Reset clears the cached default paths.
// Useful for testing with different environment variables.
func Reset() {
	defaultPaths = nil
	pathsOnce = sync.Once{}
}

// ConfigDir returns the configuration directory path.
func ConfigDir() string {
	return Default().ConfigDir
}

// ConfigFile returns the main configuration file path.
func ConfigFile() string {
	return Default().ConfigFile
}

// HostsFile returns the system hosts file path.
func HostsFile() string {
	return Default().HostsFile
}
