package config

import (
	"encoding/json"
	"errors"
	"os"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	ServerAddr string        `json:"server_addr,omitempty"`
	DBPath     string        `json:"db_path,omitempty"`
	LLM        *LLMConfig    `json:"llm,omitempty"`
	Search     *SearchConfig `json:"search,omitempty"`
}

// LLMConfig selects the generation backend. api_key may be left empty and
// provided via the OPENAI_API_KEY environment variable instead.
type LLMConfig struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	ImageModel string `json:"image_model,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
}

// SearchConfig points at the blog-search endpoint. Credentials are not
// configured here; they live in the settings store and are entered from
// the browser.
type SearchConfig struct {
	BaseURL string `json:"base_url,omitempty"`
}

// LoadConfig reads JSON config from disk.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.LLM != nil && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "settings.db"
	}
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return Config{}, errors.New("llm config missing; please set llm.provider/model/api_key in config")
	}
	return cfg, nil
}
