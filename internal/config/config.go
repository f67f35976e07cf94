package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	HTTP          struct {
		Listen string `json:"listen"`
	} `json:"http"`
	Catalog struct {
		Path    string `json:"path"`
		BaseDir string `json:"base_dir"`
		Watch   bool   `json:"watch"`
	} `json:"catalog"`
	OpenAI struct {
		APIKey  string `json:"api_key"`
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
	} `json:"openai"`
	Group struct {
		PricePer1KTokens float64 `json:"price_per_1k_tokens"`
		Rounds           int     `json:"rounds"`
	} `json:"group"`
}

// DefaultDir is where the app settings and artifacts live unless data_dir
// says otherwise.
func DefaultDir() string {
	return filepath.Join(os.Getenv("HOME"), ".chatverse")
}

// DefaultPath is the settings file used when --config is not given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:       DefaultDir(),
		LogLevel:      "info",
		MaxConcurrent: 2,
	}
	cfg.HTTP.Listen = ":8501"
	cfg.Catalog.Path = "config.yaml"
	cfg.Catalog.Watch = true
	cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.OpenAI.Model = "gpt-3.5-turbo"
	cfg.Group.PricePer1KTokens = 0.002
	cfg.Group.Rounds = 5
	return cfg
}

// envKeys maps the settings keys that can be overridden to their environment
// variable.
var envKeys = map[string]string{
	"openai.api_key":  "OPENAI_API_KEY",
	"openai.base_url": "OPENAI_BASE_URL",
	"http.listen":     "CHATVERSE_LISTEN",
	"catalog.path":    "CHATVERSE_CATALOG",
}

// EnvVar names the environment variable that overrides key, if any.
func EnvVar(key string) string {
	return envKeys[key]
}

// Load reads the settings at path, writing defaults there first if the file
// does not exist. Values from .env files and the environment win over the
// file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if listen := os.Getenv("CHATVERSE_LISTEN"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if catalog := os.Getenv("CHATVERSE_CATALOG"); catalog != "" {
		cfg.Catalog.Path = catalog
	}

	return cfg, nil
}

// loadDotEnv loads each file that exists. godotenv never overrides variables
// already set in the process environment.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to its JSON shape. Numbers come back as float64.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues flattens cfg into dot-separated keys, masking secrets if asked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return m, nil
}

// GetValue returns the value stored under a dot-separated settings key. Keys
// missing from the file fall back to their default.
func GetValue(path, key string) (any, error) {
	def, ok := defaultValues()[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	if _, err := Load(path); err != nil {
		return nil, err
	}
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	if v, ok := Flatten(raw)[key]; ok {
		return v, nil
	}
	return def, nil
}

// SetValue stores value under a dot-separated settings key in an existing
// settings file. The value is parsed to the key's type and checked before
// anything is written.
func SetValue(path, key, value string) error {
	v, err := parseValue(key, value)
	if err != nil {
		return err
	}
	raw, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(raw)
	flat[key] = v
	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}
