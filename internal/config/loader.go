package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvMode     = "LSP_BOOT_MODE"
	EnvLogLevel = "LSP_BOOT_LOG_LEVEL"
	EnvLogFile  = "LSP_BOOT_LOG_FILE"
)

var envSettings = map[string]string{
	EnvMode:     "mode",
	EnvLogLevel: "log_level",
	EnvLogFile:  "log_file",
}

// ErrUnsupportedFormat is returned for a settings file whose extension is
// not one of .yaml, .yml, .toml or .json.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Load reads settings from path, applies environment overrides and
// validates the result. An empty path or a missing file yields the
// defaults plus overrides.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	document, err := readDocument(path)
	if err != nil {
		return Config{}, err
	}

	for env, setting := range envSettings {
		if value, ok := lookupEnv(env); ok && value != "" {
			document[setting] = value
		}
	}

	return decode(document)
}

func readDocument(path string) (map[string]any, error) {
	document := make(map[string]any)
	if path == "" {
		return document, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return document, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := parse(filepath.Ext(path), data, &document); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if document == nil {
		document = make(map[string]any)
	}
	return document, nil
}

// parse decodes data in the format named by ext.
func parse(ext string, data []byte, document *map[string]any) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, document)
	case ".toml":
		return toml.Unmarshal(data, document)
	case ".json":
		return json.Unmarshal(data, document)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// decode validates the merged document and lays it over the defaults.
func decode(document map[string]any) (Config, error) {
	data, err := json.Marshal(document)
	if err != nil {
		return Config{}, fmt.Errorf("encoding settings: %w", err)
	}
	if err := validate(data); err != nil {
		return Config{}, fmt.Errorf("invalid settings: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding settings: %w", err)
	}
	return cfg, nil
}
