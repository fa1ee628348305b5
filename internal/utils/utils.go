package utils

import (
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// GetAbsCacheDir resolves the cache directory, expanding a leading ~.
// An empty path selects ~/.config/kpiscope/cache.
func GetAbsCacheDir(dir string) (string, error) {
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "kpiscope", "cache"), nil
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// ExpandPath expands a leading ~ in local paths. URLs are returned unchanged.
func ExpandPath(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
