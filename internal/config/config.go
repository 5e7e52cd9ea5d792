// Package config defines the application configuration schema and the
// viper-backed loader that fills it from files, environment variables
// and flags.
package config

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/detbox/internal/anchors"
	"github.com/MeKo-Tech/detbox/internal/geometry"
	"github.com/MeKo-Tech/detbox/internal/nms"
	"github.com/MeKo-Tech/detbox/internal/targets"
)

// Config is the complete configuration for the detbox application. It
// covers all commands and supports loading from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Active prior profile
	Profile string `mapstructure:"profile" yaml:"profile" json:"profile"`

	// Regression offset variances, four entries
	Variances []float64 `mapstructure:"variances" yaml:"variances" json:"variances"`

	// Matching configuration
	Match MatchConfig `mapstructure:"match" yaml:"match" json:"match"`

	// Suppression configuration
	NMS NMSConfig `mapstructure:"nms" yaml:"nms" json:"nms"`

	// Server configuration (for the serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// User-defined prior profiles, addressed by name next to the built-ins
	Profiles map[string]ProfileConfig `mapstructure:"profiles" yaml:"profiles" json:"profiles"`
}

// MatchConfig contains ground-truth assignment settings.
type MatchConfig struct {
	IoUThreshold float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
}

// NMSConfig contains per-class suppression settings.
type NMSConfig struct {
	IoUThreshold float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	ScoreEpsilon float64 `mapstructure:"score_epsilon" yaml:"score_epsilon" json:"score_epsilon"`
	TopK         int     `mapstructure:"top_k" yaml:"top_k" json:"top_k"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxBodyMB       int             `mapstructure:"max_body_mb" yaml:"max_body_mb" json:"max_body_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains request throttling settings.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
}

// ProfileConfig declares a user-defined prior profile. Exactly one of
// SSD or EfficientDet must be set.
type ProfileConfig struct {
	SSD          *SSDProfileConfig          `mapstructure:"ssd" yaml:"ssd,omitempty" json:"ssd,omitempty"`
	EfficientDet *EfficientDetProfileConfig `mapstructure:"efficientdet" yaml:"efficientdet,omitempty" json:"efficientdet,omitempty"`
	ClassNames   []string                   `mapstructure:"class_names" yaml:"class_names,omitempty" json:"class_names,omitempty"`
}

// SSDProfileConfig mirrors anchors.SSDProfile for file-based profiles.
type SSDProfileConfig struct {
	ImageSize       int         `mapstructure:"image_size" yaml:"image_size" json:"image_size"`
	FeatureMapSizes []int       `mapstructure:"feature_map_sizes" yaml:"feature_map_sizes" json:"feature_map_sizes"`
	Steps           []int       `mapstructure:"steps" yaml:"steps" json:"steps"`
	MinSizes        []float64   `mapstructure:"min_sizes" yaml:"min_sizes" json:"min_sizes"`
	MaxSizes        []float64   `mapstructure:"max_sizes" yaml:"max_sizes" json:"max_sizes"`
	AspectRatios    [][]float64 `mapstructure:"aspect_ratios" yaml:"aspect_ratios" json:"aspect_ratios"`
}

// EfficientDetProfileConfig mirrors anchors.EfficientDetProfile for
// file-based profiles.
type EfficientDetProfileConfig struct {
	ImageSize    int       `mapstructure:"image_size" yaml:"image_size" json:"image_size"`
	MinLevel     int       `mapstructure:"min_level" yaml:"min_level" json:"min_level"`
	MaxLevel     int       `mapstructure:"max_level" yaml:"max_level" json:"max_level"`
	NumScales    int       `mapstructure:"num_scales" yaml:"num_scales" json:"num_scales"`
	AspectRatios []float64 `mapstructure:"aspect_ratios" yaml:"aspect_ratios" json:"aspect_ratios"`
	AnchorScale  float64   `mapstructure:"anchor_scale" yaml:"anchor_scale" json:"anchor_scale"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		Verbose:   false,
		Profile:   "voc",
		Variances: []float64{0.1, 0.1, 0.2, 0.2},
		Match: MatchConfig{
			IoUThreshold: 0.5,
		},
		NMS: NMSConfig{
			IoUThreshold: 0.45,
			ScoreEpsilon: 0.01,
			TopK:         200,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxBodyMB:       10,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 120,
				RequestsPerHour:   2000,
			},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if c.LogFormat != "" && !contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)",
			c.LogFormat, strings.Join(validLogFormats, ", "))
	}

	if !anchors.IsBuiltin(c.Profile) {
		if _, ok := c.Profiles[c.Profile]; !ok {
			return fmt.Errorf("invalid profile: %q is neither built in nor defined under profiles", c.Profile)
		}
	}

	if _, err := c.CodecVariances(); err != nil {
		return err
	}
	if err := validateThreshold(c.Match.IoUThreshold, "match.iou_threshold"); err != nil {
		return err
	}
	if err := c.SuppressionConfig().Validate(); err != nil {
		return fmt.Errorf("invalid nms settings: %w", err)
	}

	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateProfiles()
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("invalid max body size: %d (must be positive)", c.Server.MaxBodyMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be positive)", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("invalid rate limit: %d requests per minute (must be positive)",
				c.Server.RateLimit.RequestsPerMinute)
		}
		if c.Server.RateLimit.RequestsPerHour <= 0 {
			return fmt.Errorf("invalid rate limit: %d requests per hour (must be positive)",
				c.Server.RateLimit.RequestsPerHour)
		}
	}
	return nil
}

func (c *Config) validateProfiles() error {
	for name, profile := range c.Profiles {
		if anchors.IsBuiltin(name) {
			return fmt.Errorf("profile %q collides with a built-in profile", name)
		}
		if err := profile.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p ProfileConfig) validate(name string) error {
	switch {
	case p.SSD != nil && p.EfficientDet != nil:
		return fmt.Errorf("profile %q sets both ssd and efficientdet", name)
	case p.SSD != nil:
		return p.SSD.profile(name).Validate()
	case p.EfficientDet != nil:
		return p.EfficientDet.profile(name).Validate()
	default:
		return fmt.Errorf("profile %q sets neither ssd nor efficientdet", name)
	}
}

// Priors generates the prior set this profile declares.
func (p ProfileConfig) Priors(name string) ([]geometry.CenterBox, error) {
	if err := p.validate(name); err != nil {
		return nil, err
	}
	if p.SSD != nil {
		return anchors.SSD(p.SSD.profile(name))
	}
	return anchors.EfficientDet(p.EfficientDet.profile(name))
}

func (p *SSDProfileConfig) profile(name string) anchors.SSDProfile {
	return anchors.SSDProfile{
		Name:            name,
		ImageSize:       p.ImageSize,
		FeatureMapSizes: p.FeatureMapSizes,
		Steps:           p.Steps,
		MinSizes:        p.MinSizes,
		MaxSizes:        p.MaxSizes,
		AspectRatios:    p.AspectRatios,
	}
}

func (p *EfficientDetProfileConfig) profile(name string) anchors.EfficientDetProfile {
	return anchors.EfficientDetProfile{
		Name:         name,
		ImageSize:    p.ImageSize,
		MinLevel:     p.MinLevel,
		MaxLevel:     p.MaxLevel,
		NumScales:    p.NumScales,
		AspectRatios: p.AspectRatios,
		AnchorScale:  p.AnchorScale,
	}
}

// ResolvePriors generates the prior set for a profile name, checking
// the built-ins before the user-defined profiles. An empty name falls
// back to the configured active profile.
func (c *Config) ResolvePriors(name string) ([]geometry.CenterBox, error) {
	if name == "" {
		name = c.Profile
	}
	if anchors.IsBuiltin(name) {
		return anchors.ByName(name)
	}
	if profile, ok := c.Profiles[name]; ok {
		return profile.Priors(name)
	}
	return nil, fmt.Errorf("%w: %q", anchors.ErrUnknownProfile, name)
}

// ClassNamesFor returns the class list configured for a profile name,
// or nil when the profile carries none.
func (c *Config) ClassNamesFor(name string) []string {
	if name == "" {
		name = c.Profile
	}
	if name == "voc" {
		return anchors.VOCClassNames()
	}
	if profile, ok := c.Profiles[name]; ok {
		return profile.ClassNames
	}
	return nil
}

// CodecVariances converts the configured variances to the codec form.
func (c *Config) CodecVariances() (targets.Variances, error) {
	if len(c.Variances) != 4 {
		return targets.Variances{}, fmt.Errorf("invalid variances: need 4 entries, got %d", len(c.Variances))
	}
	var v targets.Variances
	copy(v[:], c.Variances)
	if err := v.Validate(); err != nil {
		return targets.Variances{}, err
	}
	return v, nil
}

// MatcherConfig converts the match settings to the matcher form.
func (c *Config) MatcherConfig() targets.MatcherConfig {
	return targets.MatcherConfig{IoUThreshold: c.Match.IoUThreshold}
}

// SuppressionConfig converts the nms settings to the suppressor form.
func (c *Config) SuppressionConfig() nms.Config {
	return nms.Config{
		IoUThreshold: c.NMS.IoUThreshold,
		ScoreEpsilon: c.NMS.ScoreEpsilon,
		TopK:         c.NMS.TopK,
	}
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
