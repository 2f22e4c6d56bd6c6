package collector

import (
	"path/filepath"
	"strings"
)

// CommandConfig holds the resolved command, extra arguments, and
// environment variables needed to run a generator.
type CommandConfig struct {
	Binary    string
	ExtraArgs []string
	Env       []string
}

// WrapCommand returns the exec configuration needed to run a generator.
// Most generators are executables, but python scripts need python3 and
// jars need java -jar.
func WrapCommand(path string) CommandConfig {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return CommandConfig{
			Binary:    "python3",
			ExtraArgs: []string{path},
			Env:       []string{"PYTHONUNBUFFERED=1"},
		}
	case ".jar":
		return CommandConfig{
			Binary:    "java",
			ExtraArgs: []string{"-jar", path},
		}
	default:
		return CommandConfig{Binary: path}
	}
}

// GeneratorName derives a short display name from a generator path.
func GeneratorName(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
