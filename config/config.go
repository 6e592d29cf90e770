// CLAUDE:SUMMARY Top-level configuration struct, YAML loader and environment overrides for the service binary.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PascalJPan/re-be/audiogen"
	"github.com/PascalJPan/re-be/llm"
	"github.com/PascalJPan/re-be/morph"
	"github.com/PascalJPan/re-be/server"
)

// Config aggregates all service configuration. Component defaults are
// applied by the component constructors; only top-level fields get theirs
// here.
type Config struct {
	DBPath string `yaml:"db_path"`

	// TraceDir enables human-readable pipeline trace files when non-empty.
	TraceDir string `yaml:"trace_dir"`

	Server server.Config   `yaml:"server"`
	LLM    llm.Config      `yaml:"llm"`
	Audio  audiogen.Config `yaml:"audio"`
	Morph  morph.Config    `yaml:"morph"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "db/rebe.db"
	}
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}

// Default returns the zero configuration with defaults applied, for runs
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// ApplyEnv overrides secrets and deploy-specific settings from the
// environment. Environment always wins over the file so keys never need to
// live on disk.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("ELEVENLABS_API_KEY"); v != "" {
		c.Audio.APIKey = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("AUDIO_DIR"); v != "" {
		c.Audio.Dir = v
	}
	if v := os.Getenv("TRACE_DIR"); v != "" {
		c.TraceDir = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
}
