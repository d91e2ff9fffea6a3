package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !strings.HasSuffix(cfg.Home, ".opengoat") {
		t.Errorf("default home = %q, want ~/.opengoat", cfg.Home)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default log level = %q, want info", cfg.LogLevel)
	}
	if cfg.Gateway.Host != "127.0.0.1" || cfg.Gateway.Port != 4780 {
		t.Errorf("default gateway = %s:%d, want 127.0.0.1:4780", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	if cfg.Version == "" {
		t.Error("version should never be empty")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	home := t.TempDir()
	t.Setenv("OPENGOAT_HOME", home)
	t.Setenv("OPENGOAT_DEFAULT_AGENT", "root")
	t.Setenv("OPENGOAT_OPENCLAW_PLUGIN_PATH", "/opt/plugin")
	t.Setenv("OPENGOAT_VERSION", "9.9.9")
	t.Setenv("OPENGOAT_LOG_LEVEL", "debug")
	t.Setenv("OPENGOAT_GATEWAY_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Home != home {
		t.Errorf("home = %q, want %q", cfg.Home, home)
	}
	if cfg.DefaultAgent != "root" {
		t.Errorf("default agent = %q, want root", cfg.DefaultAgent)
	}
	if cfg.OpenClawPluginPath != "/opt/plugin" {
		t.Errorf("plugin path = %q", cfg.OpenClawPluginPath)
	}
	if cfg.Version != "9.9.9" {
		t.Errorf("version = %q, want 9.9.9", cfg.Version)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Gateway.Port != 9000 {
		t.Errorf("gateway port = %d, want 9000", cfg.Gateway.Port)
	}
}

func TestOpenClawCommand(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("OPENCLAW_CMD", "")
		if got := OpenClawCommand(); got != "openclaw" {
			t.Errorf("OpenClawCommand() = %q, want openclaw", got)
		}
	})

	t.Run("override", func(t *testing.T) {
		t.Setenv("OPENCLAW_CMD", "/usr/local/bin/openclaw-beta")
		if got := OpenClawCommand(); got != "/usr/local/bin/openclaw-beta" {
			t.Errorf("OpenClawCommand() = %q", got)
		}
	})
}

func TestPaths(t *testing.T) {
	p := NewPaths("/goat")

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"config", p.ConfigPath(), "/goat/config.json"},
		{"settings", p.SettingsPath(), "/goat/ui-settings.json"},
		{"gateway config", p.GatewayConfigPath(), "/goat/openclaw-gateway.json"},
		{"history db", p.HistoryDBPath(), "/goat/history.db"},
		{"agent config", p.AgentConfigPath("lead"), "/goat/agents/lead/config.json"},
		{"workspace", p.WorkspaceDir("lead"), "/goat/workspaces/lead"},
		{"reportees", p.ReporteesDir("lead"), "/goat/workspaces/lead/reportees"},
		{"wiki", p.WikiDir(), "/goat/organization/wiki"},
		{"session", p.SessionDir("lead", "main"), "/goat/sessions/lead/main"},
		{"task", p.TaskPath("T-0a1b2c"), "/goat/tasks/T-0a1b2c.json"},
		{"skill", p.SkillDir("research"), "/goat/skills/research"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != filepath.FromSlash(tc.want) {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}

	if n := len(p.Layout()); n != 8 {
		t.Errorf("Layout() has %d dirs, want 8", n)
	}
}

func TestExpandPath(t *testing.T) {
	t.Run("plain path untouched", func(t *testing.T) {
		got, err := ExpandPath("/tmp/x")
		if err != nil || got != "/tmp/x" {
			t.Errorf("ExpandPath(/tmp/x) = %q, %v", got, err)
		}
	})

	t.Run("tilde prefix expands", func(t *testing.T) {
		got, err := ExpandPath("~/goat")
		if err != nil {
			t.Fatalf("ExpandPath error: %v", err)
		}
		if strings.HasPrefix(got, "~") || !strings.HasSuffix(got, "goat") {
			t.Errorf("ExpandPath(~/goat) = %q", got)
		}
	})

	t.Run("empty stays empty", func(t *testing.T) {
		got, err := ExpandPath("")
		if err != nil || got != "" {
			t.Errorf("ExpandPath(\"\") = %q, %v", got, err)
		}
	})
}
