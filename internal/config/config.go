// Package config loads CLI configuration for the mdstream demo
// commands from ~/.config/mdstream/config.yaml, with sane defaults when
// no file exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/samsaffron/mdstream"
)

type Config struct {
	Footnotes            string `mapstructure:"footnotes"`             // "single-block" or "invalidate"
	ReferenceDefinitions string `mapstructure:"reference_definitions"` // "off" or "invalidate"
	IncompleteLinkURL    string `mapstructure:"incomplete_link_url"`   // placeholder for trailing links
	IncompleteImages     string `mapstructure:"incomplete_images"`     // "drop" or "placeholder"
	TailWindowBytes      int    `mapstructure:"tail_window_bytes"`     // pending-tail scan bound
	MaxBufferBytes       int    `mapstructure:"max_buffer_bytes"`      // 0 = unlimited
	Theme                Theme  `mapstructure:"theme"`
}

// Theme allows customization of demo output colors. Colors can be ANSI
// color numbers (0-255) or hex codes (#RRGGBB).
type Theme struct {
	Kind    string `mapstructure:"kind"`    // block kind labels
	Pending string `mapstructure:"pending"` // pending block text in the demo
	Muted   string `mapstructure:"muted"`   // separators, ids
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("footnotes", "single-block")
	v.SetDefault("reference_definitions", "off")
	v.SetDefault("incomplete_link_url", mdstream.DefaultIncompleteLinkURL)
	v.SetDefault("incomplete_images", "drop")
	v.SetDefault("tail_window_bytes", mdstream.DefaultTailWindowBytes)
	v.SetDefault("max_buffer_bytes", 0)
	v.SetDefault("theme.kind", "12")
	v.SetDefault("theme.pending", "11")
	v.SetDefault("theme.muted", "8")
}

// Load reads the config file if present and applies defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, ".config", "mdstream"))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads a specific config file, for tests and --config.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// StreamOptions converts the file-level strings into stream options,
// rejecting unknown values.
func (c *Config) StreamOptions() (mdstream.Options, error) {
	opts := mdstream.DefaultOptions()

	switch c.Footnotes {
	case "", "single-block":
		opts.Footnotes = mdstream.FootnotesSingleBlock
	case "invalidate":
		opts.Footnotes = mdstream.FootnotesInvalidate
	default:
		return opts, fmt.Errorf("unknown footnotes mode %q", c.Footnotes)
	}

	switch c.ReferenceDefinitions {
	case "", "off":
		opts.ReferenceDefinitions = mdstream.ReferenceDefinitionsOff
	case "invalidate":
		opts.ReferenceDefinitions = mdstream.ReferenceDefinitionsInvalidate
	default:
		return opts, fmt.Errorf("unknown reference_definitions mode %q", c.ReferenceDefinitions)
	}

	switch c.IncompleteImages {
	case "", "drop":
		opts.IncompleteImages = mdstream.IncompleteImageDrop
	case "placeholder":
		opts.IncompleteImages = mdstream.IncompleteImagePlaceholder
	default:
		return opts, fmt.Errorf("unknown incomplete_images behavior %q", c.IncompleteImages)
	}

	if c.IncompleteLinkURL != "" {
		opts.Terminator.IncompleteLinkURL = c.IncompleteLinkURL
	}
	if c.TailWindowBytes > 0 {
		opts.TailWindowBytes = c.TailWindowBytes
	}
	if c.MaxBufferBytes > 0 {
		opts.MaxBufferBytes = c.MaxBufferBytes
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
