package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		// Source is a file path, an http(s) URL, or a question-set id when
		// postgres is configured.
		Source string `yaml:"source"`
		// Format is "native" (default) or "opentdb".
		Format        string `yaml:"format"`
		Category      string `yaml:"category"`
		MaxQuestions  *int   `yaml:"maxQuestions"`
		Shuffle       *bool  `yaml:"shuffle"`
		QuestionTime  string `yaml:"questionTime"`
		FeedbackDelay string `yaml:"feedbackDelay"`
		CacheTTL      string `yaml:"cacheTTL"`
	} `yaml:"quiz"`
	Leaderboard struct {
		Key  string `yaml:"key"`
		Size int    `yaml:"size"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr dereferences an optional int with a fallback.
func IntOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// BoolOr dereferences an optional bool with a fallback.
func BoolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
