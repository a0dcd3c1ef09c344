// Package config loads the ndimg command's configuration.
package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/goccy/go-yaml"
)

// A Config is the ndimg command's configuration.
type Config struct {
	Logger LoggerConfig `yaml:"logger"`
	Image  ImageConfig  `yaml:"image"`
	TIFF   TIFFConfig   `yaml:"tiff"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// An ImageConfig holds the defaults for images created by the command.
type ImageConfig struct {
	Extents   []int `yaml:"extents"`
	BlockEdge int   `yaml:"block_edge"`
}

type TIFFConfig struct {
	Compression   string `yaml:"compression"`
	TileCacheSize int    `yaml:"tile_cache_size"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "info",
		},
		Image: ImageConfig{
			Extents: []int{5, 3},
		},
		TIFF: TIFFConfig{
			Compression:   "none",
			TileCacheSize: 64,
		},
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error; found reports whether the file existed.
func Load(path string) (cfg Config, found bool, err error) {
	cfg = Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, false, nil
	case err != nil:
		return cfg, false, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, true, err
	}
	return cfg, true, nil
}
