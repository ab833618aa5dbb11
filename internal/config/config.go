// Package config implements the per-store configuration loader (spec.md
// C1): char limits per level (with linear interpolation when only the
// endpoints are given), max depth, the prefix registry, bulk-read V2
// parameters, title length, and the session-cache phase windows.
//
// Loading follows the teacher's layered-viper pattern
// (internal/config/config.go in the teacher repo): defaults, then an
// optional on-disk file, then environment variables, highest precedence
// last. Parse failures never propagate — they fall back silently to
// defaults, per spec.md §7's InvalidConfig handling.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxTitleChars    = 50
	DefaultMaxDepth         = 5
	minMaxDepth             = 1
	maxMaxDepth             = 10
	DefaultDefaultReadLimit = 20
)

// Default prefix registry: 8 configurable defaults.
var DefaultPrefixes = map[string]string{
	"P": "Project",
	"L": "Lesson",
	"T": "Task",
	"E": "Error",
	"D": "Decision",
	"M": "Milestone",
	"S": "Skill",
	"F": "Favorite",
}

var DefaultPrefixDescriptions = map[string]string{
	"P": "Projects",
	"L": "Lessons",
	"T": "Tasks",
	"E": "Errors",
	"D": "Decisions",
	"M": "Milestones",
	"S": "Skills",
	"F": "Favorites / Navigator",
}

// BulkReadV2 holds the per-prefix slot-sizing parameters for the V2
// bulk-read selection algorithm (spec.md §4.4.4).
type BulkReadV2 struct {
	// Fixed form.
	TopNewestCount int
	TopAccessCount int

	// Percentage form (used when the counts above are zero).
	NewestPercent float64
	AccessPercent float64
	NewestMin     int
	NewestMax     int
	AccessMin     int
	AccessMax     int
}

// UsesPercent reports whether the percentage form should be used instead
// of the fixed counts.
func (b BulkReadV2) UsesPercent() bool {
	return b.TopNewestCount == 0 && b.TopAccessCount == 0 && (b.NewestPercent > 0 || b.AccessPercent > 0)
}

// SessionWindows are the session cache's three-phase lifecycle windows.
// The reference implementation hard-codes these; spec.md §9 open question
// (d) exposes them as first-class configuration so tests can tune them.
type SessionWindows struct {
	Hidden          time.Duration
	TitleOnly       time.Duration
	TitleOnlyPromoted time.Duration
}

var DefaultSessionWindows = SessionWindows{
	Hidden:            5 * time.Minute,
	TitleOnly:         30 * time.Minute,
	TitleOnlyPromoted: 15 * time.Minute,
}

// Config is the parsed, fully-resolved per-store configuration.
type Config struct {
	MaxCharsPerLevel   []int
	MaxDepth           int
	MaxTitleChars      int
	Prefixes           map[string]string
	PrefixDescriptions map[string]string
	BulkReadV2         BulkReadV2
	DefaultReadLimit   int
	SessionWindows     SessionWindows
}

// rawFile mirrors hmem.config.json's recognized fields (spec.md §4.1 /
// §6). All fields are optional; unknown fields are ignored by
// json.Unmarshal, yaml.Unmarshal and toml.Unmarshal alike.
type rawFile struct {
	MaxCharsPerLevel   []int             `json:"maxCharsPerLevel" toml:"maxCharsPerLevel" yaml:"maxCharsPerLevel"`
	MaxL1Chars         int               `json:"maxL1Chars" toml:"maxL1Chars" yaml:"maxL1Chars"`
	MaxLnChars         int               `json:"maxLnChars" toml:"maxLnChars" yaml:"maxLnChars"`
	MaxDepth           int               `json:"maxDepth" toml:"maxDepth" yaml:"maxDepth"`
	MaxTitleChars      int               `json:"maxTitleChars" toml:"maxTitleChars" yaml:"maxTitleChars"`
	Prefixes           map[string]string `json:"prefixes" toml:"prefixes" yaml:"prefixes"`
	PrefixDescriptions map[string]string `json:"prefixDescriptions" toml:"prefixDescriptions" yaml:"prefixDescriptions"`
	DefaultReadLimit   int               `json:"defaultReadLimit" toml:"defaultReadLimit" yaml:"defaultReadLimit"`
	BulkReadV2         *rawBulkReadV2    `json:"bulkReadV2" toml:"bulkReadV2" yaml:"bulkReadV2"`
}

type rawBulkReadV2 struct {
	TopNewestCount int     `json:"topNewestCount" toml:"topNewestCount" yaml:"topNewestCount"`
	TopAccessCount int     `json:"topAccessCount" toml:"topAccessCount" yaml:"topAccessCount"`
	NewestPercent  float64 `json:"newestPercent" toml:"newestPercent" yaml:"newestPercent"`
	AccessPercent  float64 `json:"accessPercent" toml:"accessPercent" yaml:"accessPercent"`
	NewestMin      int     `json:"newestMin" toml:"newestMin" yaml:"newestMin"`
	NewestMax      int     `json:"newestMax" toml:"newestMax" yaml:"newestMax"`
	AccessMin      int     `json:"accessMin" toml:"accessMin" yaml:"accessMin"`
	AccessMax      int     `json:"accessMax" toml:"accessMax" yaml:"accessMax"`
}

// Default returns the fully-populated default configuration.
func Default() *Config {
	return &Config{
		MaxCharsPerLevel:   interpolate(500, 200, DefaultMaxDepth),
		MaxDepth:           DefaultMaxDepth,
		MaxTitleChars:      DefaultMaxTitleChars,
		Prefixes:           cloneMap(DefaultPrefixes),
		PrefixDescriptions: cloneMap(DefaultPrefixDescriptions),
		BulkReadV2: BulkReadV2{
			TopNewestCount: 3,
			TopAccessCount: 2,
		},
		DefaultReadLimit: DefaultDefaultReadLimit,
		SessionWindows:   DefaultSessionWindows,
	}
}

// Load reads dir/hmem.config.json (falling back to hmem.config.yaml, then
// hmem.config.toml, then to defaults) and environment variables prefixed
// HMEM_, and returns a resolved Config. It never errors: a malformed or
// missing file silently yields Default() per spec.md's InvalidConfig
// handling — callers that want to surface a warning should check
// os.Stat themselves before calling Load.
func Load(dir string) *Config {
	cfg := Default()

	var raw *rawFile
	jsonPath := filepath.Join(dir, "hmem.config.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		var r rawFile
		if json.Unmarshal(data, &r) == nil {
			raw = &r
		}
	}
	if raw == nil {
		yamlPath := filepath.Join(dir, "hmem.config.yaml")
		if data, err := os.ReadFile(yamlPath); err == nil {
			var r rawFile
			if yaml.Unmarshal(data, &r) == nil {
				raw = &r
			}
		}
	}
	if raw == nil {
		tomlPath := filepath.Join(dir, "hmem.config.toml")
		if data, err := os.ReadFile(tomlPath); err == nil {
			var r rawFile
			if toml.Unmarshal(data, &r) == nil {
				raw = &r
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("HMEM")
	v.AutomaticEnv()
	v.SetDefault("max_depth", 0)
	v.SetDefault("default_read_limit", 0)

	if raw != nil {
		applyRaw(cfg, raw)
	}

	if md := v.GetInt("max_depth"); md > 0 {
		cfg.MaxDepth = clampDepth(md)
	}
	if drl := v.GetInt("default_read_limit"); drl > 0 {
		cfg.DefaultReadLimit = drl
	}

	return cfg
}

func applyRaw(cfg *Config, raw *rawFile) {
	if raw.MaxDepth > 0 {
		cfg.MaxDepth = clampDepth(raw.MaxDepth)
	}
	if raw.MaxTitleChars > 0 {
		cfg.MaxTitleChars = raw.MaxTitleChars
	}
	if raw.DefaultReadLimit > 0 {
		cfg.DefaultReadLimit = raw.DefaultReadLimit
	}
	if len(raw.Prefixes) > 0 {
		cfg.Prefixes = raw.Prefixes
	}
	if len(raw.PrefixDescriptions) > 0 {
		cfg.PrefixDescriptions = raw.PrefixDescriptions
	}

	switch {
	case len(raw.MaxCharsPerLevel) > 0:
		cfg.MaxCharsPerLevel = padTruncate(raw.MaxCharsPerLevel, cfg.MaxDepth)
	case raw.MaxL1Chars > 0 && raw.MaxLnChars > 0:
		cfg.MaxCharsPerLevel = interpolate(raw.MaxL1Chars, raw.MaxLnChars, cfg.MaxDepth)
	default:
		cfg.MaxCharsPerLevel = padTruncate(cfg.MaxCharsPerLevel, cfg.MaxDepth)
	}

	if raw.BulkReadV2 != nil {
		b := raw.BulkReadV2
		cfg.BulkReadV2 = BulkReadV2{
			TopNewestCount: b.TopNewestCount,
			TopAccessCount: b.TopAccessCount,
			NewestPercent:  b.NewestPercent,
			AccessPercent:  b.AccessPercent,
			NewestMin:      b.NewestMin,
			NewestMax:      b.NewestMax,
			AccessMin:      b.AccessMin,
			AccessMax:      b.AccessMax,
		}
	}
}

func clampDepth(d int) int {
	if d < minMaxDepth {
		return minMaxDepth
	}
	if d > maxMaxDepth {
		return maxMaxDepth
	}
	return d
}

// interpolate computes per-level char limits by linear interpolation
// from L1 to Ln over depth levels (spec.md §4.1).
func interpolate(l1, ln, depth int) []int {
	if depth <= 1 {
		return []int{l1}
	}
	out := make([]int, depth)
	for i := 0; i < depth; i++ {
		frac := float64(i) / float64(depth-1)
		out[i] = l1 + int(float64(ln-l1)*frac+0.5)
	}
	return out
}

// padTruncate pads arr with its last value (or 1 if empty) until it has
// length depth, or truncates it to depth.
func padTruncate(arr []int, depth int) []int {
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	out := make([]int, depth)
	last := 1
	for i := 0; i < depth; i++ {
		if i < len(arr) {
			last = arr[i]
		}
		out[i] = last
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
