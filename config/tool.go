package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MaxFramesPerSecond bounds every sampling rate, a playback never holds more frames
// than MaxFramesPerSecond per second of clip.
const MaxFramesPerSecond = 1000

// ToolConfig is shared by clipdump and clipserver.
type ToolConfig struct {
	Encoding        string  `yaml:"encoding"`
	FramesPerSecond float32 `yaml:"fps"`
	// one of "default", "variable", "full"
	Settings       string `yaml:"settings"`
	Listen         string `yaml:"listen"`
	ClipsDirectory string `yaml:"clips_dir"`
	Debug          bool   `yaml:"debug"`
}

func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		Encoding:        GetEncoding().String(),
		FramesPerSecond: 30,
		Settings:        "default",
		Listen:          ":8000",
		ClipsDirectory:  ".",
	}
}

// LoadToolConfig reads the yaml file at path on top of the defaults. An empty path returns the defaults.
func LoadToolConfig(path string) (ToolConfig, error) {
	cfg := DefaultToolConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "Cannot read config %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "Cannot parse config %q", path)
	}
	if !(cfg.FramesPerSecond > 0 && cfg.FramesPerSecond <= MaxFramesPerSecond) {
		return cfg, errors.Errorf("Invalid fps %v in %q", cfg.FramesPerSecond, path)
	}
	switch cfg.Settings {
	case "default", "variable", "full":
	default:
		return cfg, errors.Errorf("Unknown settings %q in %q", cfg.Settings, path)
	}
	return cfg, nil
}

// Apply makes the process wide parts of the config effective.
func (cfg ToolConfig) Apply() error {
	return SetEncoding(cfg.Encoding)
}
