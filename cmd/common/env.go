package common

import (
	"os"
	"strconv"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/joho/godotenv"
)

// DefaultParamEnricher derives flag names, short flags and bool defaults from the
// params structs of every command.
func DefaultParamEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}

// Env is the SOUNDSTAGE_* environment, optionally read from a .env file.
type Env struct {
	SettingsBackend string // file, redis or memory
	SettingsPath    string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LogLevel        string
	LogFile         string
	DefaultVolume   float64
	FFTSize         int
	Constrained     string // auto, true or false
}

// LoadEnv reads .env from the working directory when present. Variables
// already set in the process win.
func LoadEnv() Env {
	_ = godotenv.Load()
	return EnvFrom(os.LookupEnv)
}

func EnvFrom(lookup func(string) (string, bool)) Env {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}
	getInt := func(key string, fallback int) int {
		if v, err := strconv.Atoi(get(key, "")); err == nil {
			return v
		}
		return fallback
	}
	getFloat := func(key string, fallback float64) float64 {
		if v, err := strconv.ParseFloat(get(key, ""), 64); err == nil {
			return v
		}
		return fallback
	}

	return Env{
		SettingsBackend: strings.ToLower(get("SOUNDSTAGE_SETTINGS_BACKEND", "file")),
		SettingsPath:    get("SOUNDSTAGE_SETTINGS_PATH", DefaultSettingsPath()),
		RedisAddr:       get("SOUNDSTAGE_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:   get("SOUNDSTAGE_REDIS_PASSWORD", ""),
		RedisDB:         getInt("SOUNDSTAGE_REDIS_DB", 0),
		LogLevel:        get("SOUNDSTAGE_LOG_LEVEL", "info"),
		LogFile:         get("SOUNDSTAGE_LOG_FILE", ""),
		DefaultVolume:   getFloat("SOUNDSTAGE_DEFAULT_VOLUME", 0.7),
		FFTSize:         getInt("SOUNDSTAGE_FFT_SIZE", 256),
		Constrained:     strings.ToLower(get("SOUNDSTAGE_CONSTRAINED", "auto")),
	}
}
