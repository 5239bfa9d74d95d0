// Package config provides configuration management for the empcpd CLI.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ChrisMcGann/empcpd/pkg/core"
	"github.com/ChrisMcGann/empcpd/pkg/evidence"
	"github.com/ChrisMcGann/empcpd/pkg/filter"
	"github.com/ChrisMcGann/empcpd/pkg/identity"
	"github.com/ChrisMcGann/empcpd/pkg/pipeline"
)

// EnvPrefix marks environment variables read into the configuration.
const EnvPrefix = "EMPCPD_"

// Default values.
const (
	DefaultMatchPPM    = 5.0
	DefaultIdentityPPM = 10.0
	DefaultScoring     = "inverse_error"
)

// FilterConfig holds ion pre-filter settings.
type FilterConfig struct {
	MinIntensity  float64 `koanf:"min_intensity"`
	CutoffPercent float64 `koanf:"cutoff_percent"`
	TopN          int     `koanf:"top_n"`
	RTMin         float64 `koanf:"rt_min"`
	RTMax         float64 `koanf:"rt_max"`
}

// EvidenceConfig holds evidence scoring weights.
type EvidenceConfig struct {
	MissingPrimaryPenalty float64 `koanf:"missing_primary_penalty"`
	RatioPenalty          float64 `koanf:"ratio_penalty"`
}

// Config holds all CLI configuration options.
type Config struct {
	Mode        string         `koanf:"mode"` // Used when the ion table has no mode column
	MatchPPM    float64        `koanf:"match_ppm"`
	IdentityPPM float64        `koanf:"identity_ppm"`
	RTTolerance float64        `koanf:"rt_tolerance"`
	Workers     int            `koanf:"workers"`
	Scoring     string         `koanf:"scoring"`
	Signatures  string         `koanf:"signatures"`
	Reference   string         `koanf:"reference"`
	Filter      FilterConfig   `koanf:"filter"`
	Evidence    EvidenceConfig `koanf:"evidence"`
	Verbose     bool           `koanf:"verbose"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// flagKeys maps CLI flag names onto config keys where they differ.
var flagKeys = map[string]string{
	"min-intensity":   "filter.min_intensity",
	"cutoff":          "filter.cutoff_percent",
	"top-n":           "filter.top_n",
	"rt-min":          "filter.rt_min",
	"rt-max":          "filter.rt_max",
	"primary-penalty": "evidence.missing_primary_penalty",
	"ratio-penalty":   "evidence.ratio_penalty",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > empcpd.yaml > empcpd.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"empcpd.yaml", "empcpd.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey transforms EMPCPD_FILTER_TOP_N into filter.top_n.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range []string{"filter_", "evidence_"} {
		if strings.HasPrefix(key, section) {
			return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
		}
	}
	return key
}

// Load reads configuration from defaults, a YAML file, environment variables
// and flags. Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	def := evidence.DefaultConfig()

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"mode":                             string(core.Positive),
		"match_ppm":                        DefaultMatchPPM,
		"identity_ppm":                     DefaultIdentityPPM,
		"rt_tolerance":                     0.0,
		"workers":                          0,
		"scoring":                          DefaultScoring,
		"evidence.missing_primary_penalty": def.MissingPrimaryPenalty,
		"evidence.ratio_penalty":           def.RatioPenalty,
		"verbose":                          false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Explicitly set flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if _, err := core.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.MatchPPM <= 0 {
		return fmt.Errorf("match_ppm must be positive, got %g", c.MatchPPM)
	}
	if c.IdentityPPM <= 0 {
		return fmt.Errorf("identity_ppm must be positive, got %g", c.IdentityPPM)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if _, ok := identity.ScorerByName(c.Scoring); !ok {
		return fmt.Errorf("unknown scoring '%s' (want inverse_error or flat)", c.Scoring)
	}
	f := c.FilterConfig()
	return f.Validate()
}

// IonMode returns the configured default ionization mode.
func (c *Config) IonMode() core.Mode {
	m, err := core.ParseMode(c.Mode)
	if err != nil {
		return core.Positive
	}
	return m
}

// FilterConfig converts the filter section.
func (c *Config) FilterConfig() filter.Config {
	return filter.Config{
		MinIntensity:    c.Filter.MinIntensity,
		IntensityCutoff: c.Filter.CutoffPercent,
		TopN:            c.Filter.TopN,
		RTMin:           c.Filter.RTMin,
		RTMax:           c.Filter.RTMax,
	}
}

// PipelineConfig converts the loaded settings into pipeline settings.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		MatchPPM:    c.MatchPPM,
		IdentityPPM: c.IdentityPPM,
		RTTolerance: c.RTTolerance,
		Workers:     c.Workers,
		Filter:      c.FilterConfig(),
		Evidence: evidence.Config{
			MissingPrimaryPenalty: c.Evidence.MissingPrimaryPenalty,
			RatioPenalty:          c.Evidence.RatioPenalty,
		},
	}
}

// Scorer returns the configured identity scorer.
func (c *Config) Scorer() identity.Scorer {
	s, ok := identity.ScorerByName(c.Scoring)
	if !ok {
		return identity.InverseError(0)
	}
	return s
}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
