// Package ingress owns scan intake: persisting the scan and its files,
// staging file contents in the object store, and publishing the single
// code.submitted event that starts the pipeline.
package ingress

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/plagcode-io/plagcode/internal/config"
)

// LanguageConfig holds extension-to-language overrides loaded from
// .plagcode.yaml. Overrides are merged over the built-in table, so a config
// file can both remap known extensions and register new ones.
type LanguageConfig struct {
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	LanguageOverrides map[string]string `yaml:"language_overrides"`
}

// DefaultLanguageConfigPath is the default location for the language
// override file. Uses hidden file format following common tool conventions
// (.eslintrc, .prettierrc, etc.).
const DefaultLanguageConfigPath = ".plagcode.yaml"

// LanguageConfigPathEnvVar is the environment variable name for a custom
// config path.
const LanguageConfigPathEnvVar = "PLAGCODE_CONFIG_PATH"

// extensionLanguages is the built-in extension table. Keys are lowercase
// extensions including the dot.
var extensionLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".cs":    "csharp",
	".go":    "go",
	".rb":    "ruby",
	".php":   "php",
	".rs":    "rust",
	".swift": "swift",
}

// LoadLanguageConfig loads language overrides from a YAML file at the given
// path.
//
// Behavior:
//   - Returns empty config (not error) if file doesn't exist - overrides are optional
//   - Returns empty config + logs warning if YAML is invalid (graceful degradation)
//   - Returns populated config on success
func LoadLanguageConfig(path string) (*LanguageConfig, error) {
	cfg := &LanguageConfig{
		LanguageOverrides: make(map[string]string),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Config file not found, continuing without language overrides",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("Failed to read config file, continuing without language overrides",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse config file, continuing without language overrides",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &LanguageConfig{LanguageOverrides: make(map[string]string)}, nil
	}

	if cfg.LanguageOverrides == nil {
		cfg.LanguageOverrides = make(map[string]string)
	}

	return cfg, nil
}

// LoadLanguageConfigFromEnv loads overrides from the path in
// PLAGCODE_CONFIG_PATH, falling back to ".plagcode.yaml" in the current
// directory if not set.
func LoadLanguageConfigFromEnv() (*LanguageConfig, error) {
	path := config.GetEnvStr(LanguageConfigPathEnvVar, DefaultLanguageConfigPath)

	return LoadLanguageConfig(path)
}

// DetectLanguage maps a filename to its language by extension, overrides
// first. Returns nil when the extension is unknown.
func (c *LanguageConfig) DetectLanguage(filename string) *string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return nil
	}

	if lang, ok := c.LanguageOverrides[ext]; ok {
		return &lang
	}

	if lang, ok := extensionLanguages[ext]; ok {
		return &lang
	}

	return nil
}
