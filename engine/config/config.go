package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/cozy/engine/core"
	"github.com/spaghettifunk/cozy/engine/media"
)

// DefaultPath is looked up when no configuration file is named explicitly.
const DefaultPath = "cozy.toml"

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Media    MediaConfig    `toml:"media"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	Validation bool       `toml:"validation"`
	ClearColor [4]float32 `toml:"clear_color"`
}

type MediaConfig struct {
	SamplePath   string      `toml:"sample_path"`
	VerifySample bool        `toml:"verify_sample"`
	Expect       ExpectTable `toml:"expect"`
}

// ExpectTable describes what the bundled sample must look like.
type ExpectTable struct {
	Timescale uint32 `toml:"timescale"`
	Width     uint16 `toml:"width"`
	Height    uint16 `toml:"height"`
	Codec     string `toml:"codec"`
}

type AssetsConfig struct {
	OverrideDir string `toml:"override_dir"`
	Watch       bool   `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() *Config {
	level := "info"
	if core.DebugEnabled {
		level = "debug"
	}
	return &Config{
		Window: WindowConfig{
			Title:  "Cozy player",
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			Validation: core.DebugEnabled,
		},
		Media: MediaConfig{
			SamplePath:   "./samples/Big_Buck_Bunny_360_10s_1MB.mp4",
			VerifySample: core.DebugEnabled,
			Expect: ExpectTable{
				Timescale: 1000,
				Width:     640,
				Height:    360,
				Codec:     "avc",
			},
		},
		Assets: AssetsConfig{
			Watch: true,
		},
		Log: LogConfig{
			Level: level,
		},
	}
}

// Load reads the configuration at path on top of the defaults. An empty path
// means DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.finish()
		}
		return nil, err
	}
	defer f.Close()

	if err := cfg.decode(f); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.finish()
}

func (c *Config) decode(r io.Reader) error {
	return toml.NewDecoder(r).DisallowUnknownFields().Decode(c)
}

func (c *Config) finish() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var err error
	if c.Media.SamplePath, err = homedir.Expand(c.Media.SamplePath); err != nil {
		return err
	}
	if c.Assets.OverrideDir, err = homedir.Expand(c.Assets.OverrideDir); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d is invalid", c.Window.Width, c.Window.Height)
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.Expectation(); err != nil {
		return err
	}
	return nil
}

// Expectation converts the [media.expect] table into the probe's form.
func (c *Config) Expectation() (media.Expectation, error) {
	codec, err := media.ParseCodec(c.Media.Expect.Codec)
	if err != nil {
		return media.Expectation{}, err
	}
	return media.Expectation{
		Timescale: c.Media.Expect.Timescale,
		Width:     c.Media.Expect.Width,
		Height:    c.Media.Expect.Height,
		Codec:     codec,
	}, nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
