// Package config loads the client configuration. A YAML file (optional)
// carries the full structure; environment variables referenced as ${VAR}
// inside it are expanded, and a .env file is honored for local runs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Backend     BackendConfig     `yaml:"backend"`
	Voice       VoiceConfig       `yaml:"voice"`
	Position    PositionConfig    `yaml:"position"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
}

type VoiceConfig struct {
	AssemblyAIKey string `yaml:"assemblyai_api_key"`
	WakePhrase    string `yaml:"wake_phrase"`
	SampleRate    int    `yaml:"sample_rate"`
}

type PositionConfig struct {
	ReplayFile     string `yaml:"replay_file"`
	ReplayInterval string `yaml:"replay_interval"`
}

type PermissionsConfig struct {
	Microphone bool `yaml:"microphone"`
	Location   bool `yaml:"location"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads an optional YAML file, then fills gaps from the environment
// and finally from defaults. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()
	return &cfg, nil
}

// ReplayInterval parses the configured replay cadence.
func (c *Config) ReplayInterval() time.Duration {
	d, err := time.ParseDuration(c.Position.ReplayInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func (c *Config) applyEnv() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = os.Getenv("HTTP_ADDRESS")
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = os.Getenv("GWEN_BACKEND_URL")
	}
	if c.Voice.AssemblyAIKey == "" {
		c.Voice.AssemblyAIKey = os.Getenv("ASSEMBLYAI_API_KEY")
	}
	if c.Voice.WakePhrase == "" {
		c.Voice.WakePhrase = os.Getenv("WAKE_PHRASE")
	}
	if c.Position.ReplayFile == "" {
		c.Position.ReplayFile = os.Getenv("POSITION_REPLAY_FILE")
	}
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://127.0.0.1:5050"
	}
	if c.Voice.WakePhrase == "" {
		c.Voice.WakePhrase = "hey gwen"
	}
	if c.Voice.SampleRate == 0 {
		c.Voice.SampleRate = 16000
	}
	if c.Position.ReplayInterval == "" {
		c.Position.ReplayInterval = "5s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
