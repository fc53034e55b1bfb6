package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/siftql/sift/sift"
)

// Config holds CLI-wide settings, resolvable from flags, SIFT_* environment
// variables, or an optional config file.
type Config struct {
	DB       string `mapstructure:"db"`
	Backend  string `mapstructure:"backend"`
	Driver   string `mapstructure:"driver"`
	Schemas  string `mapstructure:"schemas"`
	Resource string `mapstructure:"resource"`
	Where    string `mapstructure:"where"`
	Cols     string `mapstructure:"cols"`
	Limit    int    `mapstructure:"limit"`
	Count    bool   `mapstructure:"count"`
	MaxDepth int    `mapstructure:"max_depth"`
	MaxNodes int    `mapstructure:"max_nodes"`
	Explain  bool   `mapstructure:"explain"`
	Format   string `mapstructure:"format"`
}

func (c Config) Limits() sift.Limits {
	return sift.Limits{MaxDepth: c.MaxDepth, MaxNodes: c.MaxNodes}
}

func init() {
	pflag.String("db", "", "database path (sqlite) or connection string (postgres)")
	pflag.String("backend", "sqlite", "backend: sqlite or postgres")
	pflag.String("driver", "sqlite", "sqlite driver: sqlite (modernc) or sqlite3 (mattn)")
	pflag.String("schemas", "", "path to schema registry JSON (array of schemas)")
	pflag.StringP("resource", "r", "", "resource to filter")
	pflag.StringP("where", "w", "", "filter as JSON")
	pflag.String("cols", "*", "columns to select")
	pflag.Int("limit", 20, "max rows to return")
	pflag.Bool("count", false, "print the matching row count instead of rows")
	pflag.Int("max-depth", sift.DefaultMaxDepth, "maximum filter nesting depth")
	pflag.Int("max-nodes", sift.DefaultMaxNodes, "maximum filter node count")
	pflag.Bool("explain", false, "print the compile steps")
	pflag.String("format", "pretty", "output format: pretty or json")
	pflag.String("config", "", "path to config file")
}

// LoadConfig resolves configuration from flags, environment, and an optional
// config file, in that precedence order.
func LoadConfig(args []string) (Config, error) {
	viper.SetDefault("backend", "sqlite")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("cols", "*")
	viper.SetDefault("limit", 20)
	viper.SetDefault("max_depth", sift.DefaultMaxDepth)
	viper.SetDefault("max_nodes", sift.DefaultMaxNodes)
	viper.SetDefault("format", "pretty")

	if err := pflag.CommandLine.Parse(args); err != nil {
		return Config{}, err
	}
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return Config{}, err
	}
	// Flag names use dashes, config keys use underscores.
	viper.RegisterAlias("max_depth", "max-depth")
	viper.RegisterAlias("max_nodes", "max-nodes")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SIFT")

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
