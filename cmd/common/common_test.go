package common

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gigurra/soundstage/cmd/engine/settings"
	"go.uber.org/zap/zapcore"
)

func TestEnvFrom_Defaults(t *testing.T) {
	env := EnvFrom(func(string) (string, bool) { return "", false })
	if env.SettingsBackend != "file" || env.DefaultVolume != 0.7 || env.FFTSize != 256 || env.Constrained != "auto" {
		t.Errorf("defaults = %+v", env)
	}
	if !strings.HasSuffix(env.SettingsPath, filepath.Join(".soundstage", "player_state.json")) {
		t.Errorf("settings path = %q", env.SettingsPath)
	}
}

func TestEnvFrom_Overrides(t *testing.T) {
	vars := map[string]string{
		"SOUNDSTAGE_SETTINGS_BACKEND": " Redis ",
		"SOUNDSTAGE_REDIS_ADDR":       "cache:6380",
		"SOUNDSTAGE_REDIS_DB":         "3",
		"SOUNDSTAGE_DEFAULT_VOLUME":   "0.5",
		"SOUNDSTAGE_FFT_SIZE":         "not-a-number",
		"SOUNDSTAGE_CONSTRAINED":      "TRUE",
	}
	env := EnvFrom(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})
	if env.SettingsBackend != "redis" || env.RedisAddr != "cache:6380" || env.RedisDB != 3 {
		t.Errorf("redis = %+v", env)
	}
	if env.DefaultVolume != 0.5 || env.FFTSize != 256 || env.Constrained != "true" {
		t.Errorf("env = %+v", env)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewLogger_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "player.log")
	log, err := NewLogger(LogConfig{Level: "warn", File: file, Console: &console})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("device lost")
	_ = log.Sync()

	if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), `"msg":"device lost"`) {
		t.Errorf("console = %q", console.String())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"level":"warn"`) {
		t.Errorf("file = %q", data)
	}
}

func TestNewLogger_QuietWithoutFileIsNop(t *testing.T) {
	log, err := NewLogger(LogConfig{Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	log.Error("nowhere")
	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Error("bad level accepted")
	}
}

func TestConstrained(t *testing.T) {
	tests := []struct {
		mem  uint64
		cpus int
		want bool
	}{
		{8 << 30, 8, false},
		{1 << 30, 8, true},
		{8 << 30, 1, true},
		{0, 0, false}, // unknown
	}
	for _, tt := range tests {
		if got := Constrained(tt.mem, tt.cpus); got != tt.want {
			t.Errorf("Constrained(%d, %d) = %v", tt.mem, tt.cpus, got)
		}
	}
	if !HostProfile("true").Constrained || HostProfile("false").Constrained {
		t.Error("explicit profile ignored")
	}
}

func TestOpenSettings(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "player_state.json")

	fs, closeFn, err := OpenSettings(ctx, Env{SettingsBackend: "file", SettingsPath: path, DefaultVolume: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := fs.(*settings.FileStore); !ok {
		t.Errorf("file backend = %T", fs)
	}
	got, err := fs.Load(ctx)
	if err != nil || got.Volume != 0.7 {
		t.Errorf("load = %+v, %v", got, err)
	}

	ms, _, err := OpenSettings(ctx, Env{SettingsBackend: "memory", DefaultVolume: 0.7})
	if _, ok := ms.(*settings.MemoryStore); !ok || err != nil {
		t.Errorf("memory backend = %T, %v", ms, err)
	}

	if _, _, err := OpenSettings(ctx, Env{SettingsBackend: "floppy"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("unknown backend err = %v", err)
	}
}
