package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "smoke.yaml")

	content := `
package: com.example.app
activity: com.example.app.MainActivity
screens:
  - name: home
    element: home_button
  - name: map
    element: map_button
routedScreen: map
followUpElement: go
logCheck: false
delays:
  beforeScreenshotMs: 1500
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Package != "com.example.app" {
		t.Errorf("expected package com.example.app, got %s", cfg.Package)
	}
	if len(cfg.Screens) != 2 || cfg.Screens[0].Name != "home" || cfg.Screens[1].Element != "map_button" {
		t.Errorf("unexpected screens: %+v", cfg.Screens)
	}
	if cfg.RoutedScreen != "map" || cfg.FollowUpElement != "go" {
		t.Errorf("unexpected routed screen: %s/%s", cfg.RoutedScreen, cfg.FollowUpElement)
	}
	if cfg.LogCheck {
		t.Error("expected logCheck false")
	}
	if cfg.Delays.BeforeScreenshotMs != 1500 {
		t.Errorf("expected beforeScreenshotMs 1500, got %d", cfg.Delays.BeforeScreenshotMs)
	}
	// Unset keys keep defaults
	if cfg.Delays.RoutedEntrySettleMs != 7000 {
		t.Errorf("expected default routedEntrySettleMs 7000, got %d", cfg.Delays.RoutedEntrySettleMs)
	}
	if cfg.Delays.LaunchSettleMs != 4000 {
		t.Errorf("expected default launchSettleMs 4000, got %d", cfg.Delays.LaunchSettleMs)
	}
	if cfg.Crash.RuntimeMarker != "AndroidRuntime" {
		t.Errorf("expected default runtime marker, got %s", cfg.Crash.RuntimeMarker)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/smoke.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	if err := os.WriteFile(path, []byte("screens: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Package != Default().Package {
		t.Error("expected defaults when no file exists")
	}

	if err := os.WriteFile(filepath.Join(dir, "smoke.yml"), []byte("package: com.other\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Package != "com.other" {
		t.Errorf("expected smoke.yml to be loaded, got %s", cfg.Package)
	}
}

func TestDefault_ScreenOrder(t *testing.T) {
	cfg := Default()
	want := []string{"sign_detection", "segmentation", "object_detection", "lane_detection", "safety_mode", "ar_routing"}
	if len(cfg.Screens) != len(want) {
		t.Fatalf("expected %d screens, got %d", len(want), len(cfg.Screens))
	}
	for i, name := range want {
		if cfg.Screens[i].Name != name {
			t.Errorf("screens[%d] = %s, want %s", i, cfg.Screens[i].Name, name)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"missing package", func(c *Config) { c.Package = "" }, core.ErrMissingRequired},
		{"no screens", func(c *Config) { c.Screens = nil }, core.ErrMissingRequired},
		{"duplicate screen", func(c *Config) { c.Screens = append(c.Screens, c.Screens[0]) }, core.ErrInvalidConfig},
		{"empty element", func(c *Config) { c.Screens[0].Element = "" }, core.ErrInvalidConfig},
		{"unknown routed screen", func(c *Config) { c.RoutedScreen = "nope" }, core.ErrInvalidConfig},
		{"missing follow-up", func(c *Config) { c.FollowUpElement = "" }, core.ErrMissingRequired},
		{"bad percent", func(c *Config) { c.DerivedTap.XPercent = 120 }, core.ErrInvalidConfig},
		{"negative delay", func(c *Config) { c.Delays.CooldownMs = -1 }, core.ErrInvalidConfig},
		{"no routed screen is fine", func(c *Config) { c.RoutedScreen = "" }, nil},
		{"empty crash markers", func(c *Config) { c.Crash.PackageMarker, c.Crash.RuntimeMarker = "", "" }, core.ErrMissingRequired},
		{"empty runtime marker", func(c *Config) { c.Crash.RuntimeMarker = "" }, core.ErrMissingRequired},
		{"empty markers without log check", func(c *Config) {
			c.LogCheck = false
			c.Crash.PackageMarker, c.Crash.RuntimeMarker = "", ""
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.ProjectDir = "/work/project"

	if got := cfg.APKPath(); got != "/work/project/app/build/outputs/apk/release/app-arm64-v8a-release.apk" {
		t.Errorf("APKPath() = %s", got)
	}
	cfg.APK = "/tmp/app.apk"
	if got := cfg.APKPath(); got != "/tmp/app.apk" {
		t.Errorf("absolute APK should be kept, got %s", got)
	}
	if got := cfg.OutputRoot(); got != "/work/project/app/build/outputs/smoke-test" {
		t.Errorf("OutputRoot() = %s", got)
	}
	if got := cfg.ResourceID("start_ar"); got != "com.mapbox.vision.teaser:id/start_ar" {
		t.Errorf("ResourceID() = %s", got)
	}
	if cfg.CommandTimeout() != time.Minute {
		t.Errorf("CommandTimeout() = %v", cfg.CommandTimeout())
	}
}
