package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the denoiser's full runtime configuration, loaded from flags,
// environment variables and an optional config file by Load.
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Graph   GraphConfig   `mapstructure:"graph"`

	LogLevel string `mapstructure:"log_level"`
}

// PathsConfig locates the weights file the graph's Conv/ConcatConv ops bind
// their constant tensors from.
type PathsConfig struct {
	WeightsPath string `mapstructure:"weights_path"`
}

// RuntimeConfig controls the Engine the graph executes against.
type RuntimeConfig struct {
	Workers         int `mapstructure:"workers"`
	TensorBlockSize int `mapstructure:"tensor_block_size"`
}

// GraphConfig describes the image shape and tone-mapping/tiling options an
// InputProcess/OutputProcess pair is built with.
type GraphConfig struct {
	TileSize      int    `mapstructure:"tile_size"`
	TileAlignment int    `mapstructure:"tile_alignment"`
	Transfer      string `mapstructure:"transfer"`
	HDR           bool   `mapstructure:"hdr"`
	SNorm         bool   `mapstructure:"snorm"`
}

// LoadOptions binds LoadOptions.Cmd's flags (if any), an optional config
// file, and Defaults into a Config via Load.
type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultConfig returns the out-of-the-box denoiser configuration.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			WeightsPath: "models/denoiser.safetensors",
		},
		Runtime: RuntimeConfig{
			Workers:         4,
			TensorBlockSize: 1,
		},
		Graph: GraphConfig{
			TileSize:      256,
			TileAlignment: 4,
			Transfer:      TransferPU,
			HDR:           true,
			SNorm:         false,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-weights-path", defaults.Paths.WeightsPath, "Path to the network's safetensors weights file")
	fs.Int("runtime-workers", defaults.Runtime.Workers, "Parallel goroutines for kernel fan-out (1 = sequential)")
	fs.Int("runtime-tensor-block-size", defaults.Runtime.TensorBlockSize, "Engine tensor block size (1, 8, or 16)")
	fs.Int("graph-tile-size", defaults.Graph.TileSize, "Working-set tile edge length in pixels")
	fs.Int("graph-tile-alignment", defaults.Graph.TileAlignment, "Required H,W divisor (network downsampling factor)")
	fs.String("graph-transfer", defaults.Graph.Transfer, "Tone-mapping transfer function (linear|srgb|pu)")
	fs.Bool("graph-hdr", defaults.Graph.HDR, "Treat color input/output as unclamped HDR")
	fs.Bool("graph-snorm", defaults.Graph.SNorm, "Treat color input/output as signed-normalized ([-1,1])")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

// Load builds a Config from flags bound to opts.Cmd, environment variables
// prefixed DENOISEGRAPH_, an optional config file, and opts.Defaults, listed
// from highest to lowest priority.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("DENOISEGRAPH")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("denoisegraph")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.weights_path", c.Paths.WeightsPath)
	v.SetDefault("runtime.workers", c.Runtime.Workers)
	v.SetDefault("runtime.tensor_block_size", c.Runtime.TensorBlockSize)
	v.SetDefault("graph.tile_size", c.Graph.TileSize)
	v.SetDefault("graph.tile_alignment", c.Graph.TileAlignment)
	v.SetDefault("graph.transfer", c.Graph.Transfer)
	v.SetDefault("graph.hdr", c.Graph.HDR)
	v.SetDefault("graph.snorm", c.Graph.SNorm)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.weights_path", "paths-weights-path")
	v.RegisterAlias("runtime.workers", "runtime-workers")
	v.RegisterAlias("runtime.tensor_block_size", "runtime-tensor-block-size")
	v.RegisterAlias("graph.tile_size", "graph-tile-size")
	v.RegisterAlias("graph.tile_alignment", "graph-tile-alignment")
	v.RegisterAlias("graph.transfer", "graph-transfer")
	v.RegisterAlias("graph.hdr", "graph-hdr")
	v.RegisterAlias("graph.snorm", "graph-snorm")
	v.RegisterAlias("log_level", "log-level")
}
