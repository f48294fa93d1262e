package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is the optional config file read from the working directory.
const DefaultFile = "relgraph.toml"

// EnvPrefix prefixes environment overrides, e.g. RELGRAPH_PORT=9090 or
// RELGRAPH_LAYOUT_ITERATIONS=300.
const EnvPrefix = "RELGRAPH_"

// Config holds all configuration for the application
type Config struct {
	Source     string         `koanf:"source"`
	WebMode    bool           `koanf:"web"`
	Port       int            `koanf:"port" validate:"gte=0,lte=65535"`
	Watch      bool           `koanf:"watch"`
	Layout     LayoutConfig   `koanf:"layout"`
	Analysis   AnalysisConfig `koanf:"analysis"`
	Paths      PathsConfig    `koanf:"paths"`
	Clusters   ClustersConfig `koanf:"clusters"`
	History    string         `koanf:"history"`
	Verbosity  string         `koanf:"verbosity"`
	VerboseCnt int            `koanf:"verbose"`
	JSONLogs   bool           `koanf:"json-logs"`
}

type LayoutConfig struct {
	Strategy   string  `koanf:"strategy"`
	Iterations int     `koanf:"iterations" validate:"gte=1"`
	Seed       uint64  `koanf:"seed"`
	Theta      float64 `koanf:"theta" validate:"gte=0"`
}

type AnalysisConfig struct {
	TopK            int  `koanf:"topk" validate:"gte=1"`
	SkipBetweenness bool `koanf:"skip-betweenness"`
}

type PathsConfig struct {
	MaxDepth int `koanf:"maxdepth" validate:"gte=1"`
	MaxPaths int `koanf:"maxpaths" validate:"gte=1"`
}

type ClustersConfig struct {
	Method     string  `koanf:"method" validate:"omitempty,oneof=components modularity"`
	Resolution float64 `koanf:"resolution" validate:"gt=0"`
}

// FlagKeys maps command line flag names onto config keys where they differ.
var FlagKeys = map[string]string{
	"layout":           "layout.strategy",
	"iterations":       "layout.iterations",
	"seed":             "layout.seed",
	"theta":            "layout.theta",
	"top-k":            "analysis.topk",
	"skip-betweenness": "analysis.skip-betweenness",
	"max-depth":        "paths.maxdepth",
	"max-paths":        "paths.maxpaths",
	"clusters":         "clusters.method",
	"resolution":       "clusters.resolution",
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"source": "",
		"web":    false,
		"port":   8080,
		"watch":  false,
		"layout": map[string]interface{}{
			"strategy":   "force",
			"iterations": 100,
			"seed":       1,
			"theta":      0.0,
		},
		"analysis": map[string]interface{}{
			"topk":             10,
			"skip-betweenness": false,
		},
		"paths": map[string]interface{}{
			"maxdepth": 10,
			"maxpaths": 1000,
		},
		"clusters": map[string]interface{}{
			"method":     "components",
			"resolution": 1.0,
		},
		"history":   "",
		"verbosity": "",
		"verbose":   0,
		"json-logs": false,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(DefaultFile, f)
}

// LoadFile is Load with an explicit config file path. A missing file is
// ignored; a malformed one is an error.
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	// 3. Environment Variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		provider := posflag.ProviderWithFlag(f, ".", k, func(flag *pflag.Flag) (string, interface{}) {
			key := flag.Name
			if mapped, ok := FlagKeys[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(f, flag)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// envKey maps RELGRAPH_LAYOUT_ITERATIONS to layout.iterations. The first
// underscore splits section from key; later ones become dashes so
// RELGRAPH_JSON_LOGS maps to json-logs.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return s
	}
	switch section {
	case "layout", "analysis", "paths", "clusters":
		return section + "." + strings.ReplaceAll(rest, "_", "-")
	default:
		return strings.ReplaceAll(s, "_", "-")
	}
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
