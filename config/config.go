// Package config loads pulse.yml / pulse.toml.
//
// Layers, lowest precedence first:
//  1. Global config ($XDG_CONFIG_HOME/pulse/pulse.yml)
//  2. Project config (first pulse.{yml,yaml,toml} from the start dir upward)
//  3. Local override (pulse.override.{yml,yaml,toml} next to the project file)
//  4. PULSE_* environment variables
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/paths"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var configNames = []string{
	"pulse.yml",
	"pulse.yaml",
	"pulse.toml",
	".pulse.yml",
	".pulse.yaml",
}

var overrideNames = []string{
	"pulse.override.yml",
	"pulse.override.yaml",
	"pulse.override.toml",
}

// Load reads and parses a single configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	return LoadFromBytes(data, formatOf(path))
}

// LoadDefault loads the layered configuration for the current directory.
// A missing config file is not an error: defaults apply.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return LoadFromWithLogger(startDir, logrus.NewEntry(logger))
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging
func LoadFromWithLogger(startDir string, logger *logrus.Entry) (*Config, error) {
	merged := map[string]interface{}{}

	// 1. Global config (optional)
	globalPath := findIn(paths.ConfigDir(), configNames)
	if globalPath != "" {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		doc, err := readDocument(globalPath)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
		} else {
			merged = mergeMaps(merged, doc)
		}
	}

	// 2. Project config (optional)
	projectPath, err := FindConfigFile(startDir)
	if err != nil && !errors.Is(err, errors.ErrCodeConfigNotFound) {
		return nil, err
	}
	if projectPath != "" && projectPath != globalPath {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		doc, err := readDocument(projectPath)
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, doc)

		// 3. Local overrides
		for _, name := range overrideNames {
			overridePath := filepath.Join(filepath.Dir(projectPath), name)
			if _, err := os.Stat(overridePath); err != nil {
				continue
			}
			logger.WithField("path", overridePath).Debug("Loading local override configuration")
			doc, err := readDocument(overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse override file, skipping")
				continue
			}
			merged = mergeMaps(merged, doc)
		}
	}

	cfg, err := fromDocument(merged)
	if err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded and validated successfully")
	return cfg, nil
}

// LoadFromBytes parses one configuration document in the given format
// ("yaml" or "toml"), then applies environment overrides and defaults.
func LoadFromBytes(data []byte, format string) (*Config, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

func fromDocument(doc map[string]interface{}) (*Config, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	known := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if knownKeys[k] {
			known[k] = v
			continue
		}
		if cfg.Extensions == nil {
			cfg.Extensions = make(map[string]interface{})
		}
		cfg.Extensions[k] = v
	}
	if err := decoder.Decode(known); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays PULSE_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse environment overrides")
	}
	return nil
}

// FindConfigFile searches from startDir up to the filesystem root, then the
// user config directory.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		if path := findIn(dir, configNames); path != "" {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if path := findIn(paths.ConfigDir(), configNames); path != "" {
		return path, nil
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

func findIn(dir string, names []string) string {
	if dir == "" {
		return ""
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

func readDocument(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	doc, err := decodeDocument(data, formatOf(path))
	if err != nil {
		if pe, ok := err.(*errors.PulseError); ok {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	return doc, nil
}

func decodeDocument(data []byte, format string) (map[string]interface{}, error) {
	expanded := []byte(expandEnvVars(string(data)))
	doc := map[string]interface{}{}
	if len(bytes.TrimSpace(expanded)) == 0 {
		return doc, nil
	}

	switch format {
	case "toml":
		if err := toml.Unmarshal(expanded, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
	case "yaml", "yml", "":
		if err := yaml.Unmarshal(expanded, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
	default:
		return nil, errors.Newf(errors.ErrCodeConfigInvalid, "unsupported config format %q", format)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// mergeMaps merges override into base. Nested maps merge key by key; any
// other value in override replaces the base value.
func mergeMaps(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if baseMap, ok := result[k].(map[string]interface{}); ok {
			if overrideMap, ok := v.(map[string]interface{}); ok {
				result[k] = mergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}
