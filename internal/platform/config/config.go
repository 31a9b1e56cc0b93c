package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`

	// Dataset inputs.
	InputFile   string `env:"INPUT_FILE"`
	ModelFiles  string `env:"MODEL_FILES,required"`
	LoadWorkers int    `env:"LOAD_WORKERS" envDefault:"0"`

	// Answer segmentation separators.
	CodeBegin       string `env:"CODE_BEGIN" envDefault:"{code_begin}"`
	CodeEnd         string `env:"CODE_END" envDefault:"{code_end}"`
	CodeOutputBegin string `env:"CODE_OUTPUT_BEGIN" envDefault:"{code_output_begin}"`
	CodeOutputEnd   string `env:"CODE_OUTPUT_END" envDefault:"{code_output_end}"`

	// Generation backend.
	LLMAPIKey        string   `env:"LLM_API_KEY"`
	LLMBaseURL       string   `env:"LLM_BASE_URL"`
	LLMModel         string   `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMRetryAttempts int      `env:"LLM_RETRY_ATTEMPTS" envDefault:"5"`
	RateLimitRPS     int      `env:"RATE_LIMIT_RPS" envDefault:"1"`
	StopPhrases      []string `env:"STOP_PHRASES" envSeparator:","`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := cfg.ParsedModelFiles(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParsedModelFiles parses MODEL_FILES of the form
// "model=path1,path2;other=path3" into a model -> result-file-list map.
func (c *Config) ParsedModelFiles() (map[string][]string, error) {
	files := make(map[string][]string)
	for _, part := range strings.Split(c.ModelFiles, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, list, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid MODEL_FILES entry %q, want model=path[,path...]", part)
		}
		var paths []string
		for _, p := range strings.Split(list, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("model %q has no result files", name)
		}
		files[name] = paths
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("MODEL_FILES defines no models")
	}
	return files, nil
}
