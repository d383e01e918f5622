// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "GAZEFLOW_CONFIG"

// Environment selects which override section applies.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the complete gazeflow configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Bus         BusConfig         `yaml:"bus"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Capture     CaptureConfig     `yaml:"capture"`
	Engagement  EngagementConfig  `yaml:"engagement"`
	Reveal      RevealConfig      `yaml:"reveal"`
	History     HistoryConfig     `yaml:"history"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the sections an environment may replace.
type Overrides struct {
	Bus         *BusConfig         `yaml:"bus,omitempty"`
	Coordinator *CoordinatorConfig `yaml:"coordinator,omitempty"`
	History     *HistoryConfig     `yaml:"history,omitempty"`
}

// BusConfig configures the in-process message bus.
type BusConfig struct {
	// InboxSize bounds each context's pending message queue. Messages
	// arriving at a full inbox are dropped.
	InboxSize int `yaml:"inbox_size"`
}

// CoordinatorConfig configures the control-plane hub.
type CoordinatorConfig struct {
	// PermissionTimeout bounds the wait for a page's permission result.
	PermissionTimeout time.Duration `yaml:"permission_timeout"`

	// CreationTimeout bounds the wait for the capture host document to
	// be created.
	CreationTimeout time.Duration `yaml:"creation_timeout"`

	// CaptureDocument is the path of the capture host document; the
	// existence check matches documents whose URL ends with it.
	CaptureDocument string `yaml:"capture_document"`
}

// CaptureConfig configures the capture host.
type CaptureConfig struct {
	VideoWidth  int `yaml:"video_width"`
	VideoHeight int `yaml:"video_height"`

	// PermissionName is the device permission queried by the
	// "is permission already granted" check.
	PermissionName string `yaml:"permission_name"`

	// TickInterval paces the synthetic prediction engine.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// EngagementConfig configures element tracking in the page.
type EngagementConfig struct {
	// CandidateTags are the element tags tracked for visibility.
	CandidateTags []string `yaml:"candidate_tags"`

	// StrippedTags are removed from an element's subtree before its
	// text is fingerprinted.
	StrippedTags []string `yaml:"stripped_tags"`

	// HighlightColor is the background applied to gazed elements.
	HighlightColor string `yaml:"highlight_color"`

	// VisibilityThreshold is the fraction of an element's area that
	// must be inside the viewport for it to count as visible.
	VisibilityThreshold float64 `yaml:"visibility_threshold"`
}

// RevealConfig configures the fog-of-war overlay.
type RevealConfig struct {
	Radius float64 `yaml:"radius"`
	Blur   float64 `yaml:"blur"`
	Fill   string  `yaml:"fill"`
}

// HistoryConfig configures the visit store and favicon lookup.
type HistoryConfig struct {
	Database         string        `yaml:"database"`
	MaxResults       int           `yaml:"max_results"`
	ExcludedPrefixes []string      `yaml:"excluded_prefixes"`
	URLDisplayLength int           `yaml:"url_display_length"`
	FaviconEndpoint  string        `yaml:"favicon_endpoint"`
	FaviconTimeout   time.Duration `yaml:"favicon_timeout"`
}

// Default returns the base every file is merged into.
func Default() *Config {
	return &Config{
		Environment: Development,
		Bus: BusConfig{
			InboxSize: 256,
		},
		Coordinator: CoordinatorConfig{
			PermissionTimeout: 2 * time.Minute,
			CreationTimeout:   10 * time.Second,
			CaptureDocument:   "capture.html",
		},
		Capture: CaptureConfig{
			VideoWidth:     1280,
			VideoHeight:    720,
			PermissionName: "camera",
			TickInterval:   100 * time.Millisecond,
		},
		Engagement: EngagementConfig{
			CandidateTags:       []string{"p", "h1", "h2", "h3", "h4", "h5", "h6", "span", "li", "img"},
			StrippedTags:        []string{"script", "style", "noscript"},
			HighlightColor:      "yellow",
			VisibilityThreshold: 0.1,
		},
		Reveal: RevealConfig{
			Radius: 50,
			Blur:   10,
			Fill:   "rgba(0, 0, 0, 0.5)",
		},
		History: HistoryConfig{
			Database:         "${HOME}/.local/share/gazeflow/history.db",
			MaxResults:       100,
			ExcludedPrefixes: []string{"chrome-extension://"},
			URLDisplayLength: 150,
			FaviconEndpoint:  "https://icons.duckduckgo.com/ip3/%s.ico",
			FaviconTimeout:   5 * time.Second,
		},
	}
}

// Load reads the file named by GAZEFLOW_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s is not set; point it at a gazeflow.yaml or pass --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads path over Default, applies the selected environment's
// overrides, and expands ${VAR} references in paths.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	config.applyEnvironmentOverrides()
	config.ExpandPaths()
	return config, nil
}

// Configured reports whether GAZEFLOW_CONFIG names a file.
func Configured() bool {
	return os.Getenv(EnvironmentVariable) != ""
}

// ExpandPaths replaces ${VAR} and ${VAR:-default} references in path
// fields. LoadFile calls it; callers starting from Default do it
// themselves.
func (c *Config) ExpandPaths() {
	c.History.Database = expandVariables(c.History.Database)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Bus != nil && overrides.Bus.InboxSize != 0 {
		c.Bus.InboxSize = overrides.Bus.InboxSize
	}

	if coordinator := overrides.Coordinator; coordinator != nil {
		if coordinator.PermissionTimeout != 0 {
			c.Coordinator.PermissionTimeout = coordinator.PermissionTimeout
		}
		if coordinator.CreationTimeout != 0 {
			c.Coordinator.CreationTimeout = coordinator.CreationTimeout
		}
		if coordinator.CaptureDocument != "" {
			c.Coordinator.CaptureDocument = coordinator.CaptureDocument
		}
	}

	if history := overrides.History; history != nil {
		if history.Database != "" {
			c.History.Database = history.Database
		}
		if history.MaxResults != 0 {
			c.History.MaxResults = history.MaxResults
		}
		if history.ExcludedPrefixes != nil {
			c.History.ExcludedPrefixes = history.ExcludedPrefixes
		}
		if history.URLDisplayLength != 0 {
			c.History.URLDisplayLength = history.URLDisplayLength
		}
		if history.FaviconEndpoint != "" {
			c.History.FaviconEndpoint = history.FaviconEndpoint
		}
		if history.FaviconTimeout != 0 {
			c.History.FaviconTimeout = history.FaviconTimeout
		}
	}
}

var variablePattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVariables replaces ${VAR} and ${VAR:-default} with environment
// values.
func expandVariables(value string) string {
	return variablePattern.ReplaceAllStringFunc(value, func(match string) string {
		parts := variablePattern.FindStringSubmatch(match)
		if resolved := os.Getenv(parts[1]); resolved != "" {
			return resolved
		}
		return parts[2]
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Bus.InboxSize <= 0 {
		errs = append(errs, fmt.Errorf("bus.inbox_size must be positive"))
	}
	if c.Coordinator.PermissionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("coordinator.permission_timeout must be positive"))
	}
	if c.Coordinator.CreationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("coordinator.creation_timeout must be positive"))
	}
	if c.Coordinator.CaptureDocument == "" {
		errs = append(errs, fmt.Errorf("coordinator.capture_document is required"))
	}
	if c.Capture.VideoWidth <= 0 || c.Capture.VideoHeight <= 0 {
		errs = append(errs, fmt.Errorf("capture.video_width and capture.video_height must be positive"))
	}
	if c.Capture.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("capture.tick_interval must be positive"))
	}
	if len(c.Engagement.CandidateTags) == 0 {
		errs = append(errs, fmt.Errorf("engagement.candidate_tags must not be empty"))
	}
	if c.Engagement.VisibilityThreshold < 0 || c.Engagement.VisibilityThreshold > 1 {
		errs = append(errs, fmt.Errorf("engagement.visibility_threshold must be between 0 and 1"))
	}
	if c.Reveal.Radius <= 0 {
		errs = append(errs, fmt.Errorf("reveal.radius must be positive"))
	}
	if c.Reveal.Blur < 0 {
		errs = append(errs, fmt.Errorf("reveal.blur must not be negative"))
	}
	if c.History.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("history.max_results must be positive"))
	}
	if c.History.URLDisplayLength <= 0 {
		errs = append(errs, fmt.Errorf("history.url_display_length must be positive"))
	}
	if !strings.Contains(c.History.FaviconEndpoint, "%s") {
		errs = append(errs, fmt.Errorf("history.favicon_endpoint must contain %%s for the hostname"))
	}

	return errors.Join(errs...)
}
