// Package config handles configuration for smoke-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

// Config represents the smoke test configuration (smoke.yaml).
type Config struct {
	// Application under test
	Package  string `yaml:"package"`  // e.g. com.mapbox.vision.teaser
	Activity string `yaml:"activity"` // Launcher activity, fully qualified
	APK      string `yaml:"apk"`      // APK to install, relative to ProjectDir unless absolute

	// Build
	ProjectDir   string `yaml:"projectDir"`
	BuildCommand string `yaml:"buildCommand"`

	// Output root; per-device trees are created below it
	OutputDir string `yaml:"outputDir"`

	// Screens in replay order
	Screens []Screen `yaml:"screens"`

	// RoutedScreen names the screen that uses the extended discovery
	// (entry tap, derived map tap, follow-up control).
	RoutedScreen    string     `yaml:"routedScreen"`
	FollowUpElement string     `yaml:"followUpElement"`
	DerivedTap      DerivedTap `yaml:"derivedTap"`

	// Log scanning
	LogCheck bool        `yaml:"logCheck"`
	Crash    CrashConfig `yaml:"crash"`

	Delays Delays `yaml:"delays"`

	// CommandTimeoutMs bounds every single adb invocation
	CommandTimeoutMs int `yaml:"commandTimeoutMs"`
}

// Screen maps a screen name to the resource id of its entry control.
type Screen struct {
	Name    string `yaml:"name"`
	Element string `yaml:"element"`
}

// DerivedTap places the map tap as a percentage of the canvas size.
type DerivedTap struct {
	XPercent int `yaml:"xPercent"`
	YPercent int `yaml:"yPercent"`
}

// CrashConfig is the crash signature searched for in device logs.
type CrashConfig struct {
	PackageMarker string `yaml:"packageMarker"`
	RuntimeMarker string `yaml:"runtimeMarker"`
	MinSeverity   string `yaml:"minSeverity"`
}

// Delays holds every settle delay in milliseconds.
type Delays struct {
	DiscoveryLaunchMs   int `yaml:"discoveryLaunchMs"`   // after launch, before the first snapshot
	RoutedEntrySettleMs int `yaml:"routedEntrySettleMs"` // discovery: after entry tap, includes the old 1s+2s log-check wait
	RoutedMapSettleMs   int `yaml:"routedMapSettleMs"`   // discovery: after derived tap, before re-snapshot
	RoutedEntryDelayMs  int `yaml:"routedEntryDelayMs"`  // replay: delay after entry tap
	RoutedMapDelayMs    int `yaml:"routedMapDelayMs"`    // replay: delay after derived tap
	LaunchSettleMs      int `yaml:"launchSettleMs"`      // replay: after launch
	BeforeScreenshotMs  int `yaml:"beforeScreenshotMs"`
	CooldownMs          int `yaml:"cooldownMs"`      // after screenshot, before force-stop
	LogPullSettleMs     int `yaml:"logPullSettleMs"` // before pulling logs
	LogReadSettleMs     int `yaml:"logReadSettleMs"` // after pulling logs, before scanning
}

// Default returns the configuration of the Vision teaser smoke test.
func Default() *Config {
	return &Config{
		Package:      "com.mapbox.vision.teaser",
		Activity:     "com.mapbox.vision.examples.activity.main.MainActivity",
		APK:          "app/build/outputs/apk/release/app-arm64-v8a-release.apk",
		ProjectDir:   "../../",
		BuildCommand: "./gradlew clean :app:assembleRelease -PDISABLE_TELEMETRY=true",
		OutputDir:    "app/build/outputs/smoke-test",
		Screens: []Screen{
			{Name: "sign_detection", Element: "sign_detection_container"},
			{Name: "segmentation", Element: "segm_container"},
			{Name: "object_detection", Element: "det_container"},
			{Name: "lane_detection", Element: "line_detection_container"},
			{Name: "safety_mode", Element: "distance_container"},
			{Name: "ar_routing", Element: "ar_navigation_button_container"},
		},
		RoutedScreen:    "ar_routing",
		FollowUpElement: "start_ar",
		DerivedTap:      DerivedTap{XPercent: 70, YPercent: 60},
		LogCheck:        true,
		Crash: CrashConfig{
			PackageMarker: "com.mapbox",
			RuntimeMarker: "AndroidRuntime",
			MinSeverity:   "E",
		},
		Delays: Delays{
			DiscoveryLaunchMs:   5000,
			RoutedEntrySettleMs: 7000,
			RoutedMapSettleMs:   3000,
			RoutedEntryDelayMs:  1000,
			RoutedMapDelayMs:    2000,
			LaunchSettleMs:      4000,
			BeforeScreenshotMs:  4000,
			CooldownMs:          2000,
			LogPullSettleMs:     1000,
			LogReadSettleMs:     2000,
		},
		CommandTimeoutMs: 60000,
	}
}

// Load loads configuration from a file. Keys missing from the file keep
// their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(fmt.Errorf("%s: %w", path, err))
	}

	return cfg, nil
}

// LoadFromDir looks for smoke.yaml or smoke.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try smoke.yaml first
	configPath := filepath.Join(dir, "smoke.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try smoke.yml
	configPath = filepath.Join(dir, "smoke.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, use the defaults
	return Default(), nil
}

// Validate checks the configuration for values the protocols cannot run with.
func (c *Config) Validate() error {
	if c.Package == "" {
		return core.ErrMissingRequired.WithMessage("package is required")
	}
	if c.Activity == "" {
		return core.ErrMissingRequired.WithMessage("activity is required")
	}
	if len(c.Screens) == 0 {
		return core.ErrMissingRequired.WithMessage("at least one screen is required")
	}

	seen := make(map[string]bool, len(c.Screens))
	for i, s := range c.Screens {
		if s.Name == "" || s.Element == "" {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("screens[%d]: name and element are required", i))
		}
		if seen[s.Name] {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("duplicate screen %q", s.Name))
		}
		seen[s.Name] = true
	}

	if c.RoutedScreen != "" {
		if !seen[c.RoutedScreen] {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("routed screen %q is not in screens", c.RoutedScreen))
		}
		if c.FollowUpElement == "" {
			return core.ErrMissingRequired.WithMessage("followUpElement is required with routedScreen")
		}
		if c.DerivedTap.XPercent < 0 || c.DerivedTap.XPercent > 100 ||
			c.DerivedTap.YPercent < 0 || c.DerivedTap.YPercent > 100 {
			return core.ErrInvalidConfig.WithMessage("derivedTap percentages must be within 0-100")
		}
	}

	if c.LogCheck && (c.Crash.PackageMarker == "" || c.Crash.RuntimeMarker == "") {
		return core.ErrMissingRequired.WithMessage("crash.packageMarker and crash.runtimeMarker are required with logCheck")
	}

	d := c.Delays
	for _, ms := range []int{
		d.DiscoveryLaunchMs, d.RoutedEntrySettleMs, d.RoutedMapSettleMs, d.RoutedEntryDelayMs,
		d.RoutedMapDelayMs, d.LaunchSettleMs, d.BeforeScreenshotMs, d.CooldownMs,
		d.LogPullSettleMs, d.LogReadSettleMs,
	} {
		if ms < 0 {
			return core.ErrInvalidConfig.WithMessage("delays must not be negative")
		}
	}
	if c.CommandTimeoutMs < 0 {
		return core.ErrInvalidConfig.WithMessage("commandTimeoutMs must not be negative")
	}

	return nil
}

// ResourceID returns the fully qualified resource id of an element name.
func (c *Config) ResourceID(element string) string {
	return c.Package + ":id/" + element
}

// APKPath resolves APK against ProjectDir.
func (c *Config) APKPath() string {
	if filepath.IsAbs(c.APK) {
		return c.APK
	}
	return filepath.Join(c.ProjectDir, c.APK)
}

// OutputRoot resolves OutputDir against ProjectDir.
func (c *Config) OutputRoot() string {
	if filepath.IsAbs(c.OutputDir) {
		return c.OutputDir
	}
	return filepath.Join(c.ProjectDir, c.OutputDir)
}

// CommandTimeout returns the per-call device timeout (0 disables it).
func (c *Config) CommandTimeout() time.Duration {
	return Millis(c.CommandTimeoutMs)
}

// Millis converts a millisecond count to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
