package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
	"github.com/gigurra/soundstage/cmd/engine/media"
	"github.com/gigurra/soundstage/cmd/engine/settings"
	"github.com/gigurra/soundstage/cmd/engine/store"
	"github.com/gigurra/soundstage/cmd/engine/visual"
	"go.uber.org/zap"
)

var ErrUnknownBackend = errors.New("unknown settings backend")

// OpenSettings picks the settings store named by env. The returned close func is
// never nil.
func OpenSettings(ctx context.Context, env Env) (settings.Store, func() error, error) {
	defaults := settings.Defaults().WithVolume(env.DefaultVolume)
	noop := func() error { return nil }
	switch env.SettingsBackend {
	case "", "file":
		return settings.NewFileStore(env.SettingsPath, defaults), noop, nil
	case "memory":
		return settings.NewMemoryStore(defaults), noop, nil
	case "redis":
		rs, err := settings.NewRedisStore(ctx, settings.RedisConfig{
			Addr:     env.RedisAddr,
			Password: env.RedisPassword,
			DB:       env.RedisDB,
		}, defaults)
		if err != nil {
			return nil, noop, err
		}
		return rs, rs.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w %q (want file, redis or memory)", ErrUnknownBackend, env.SettingsBackend)
	}
}

// Player is the process-wide store plus the resources it was built from.
type Player struct {
	Store   *store.Store
	Profile visual.Profile
	Log     *zap.Logger

	closers []func() error
}

// OpenPlayer builds the one store of this process on the real audio backend. A
// file settings store is watched, so edits from other processes are applied live.
func OpenPlayer(ctx context.Context, env Env, log *zap.Logger) (*Player, error) {
	if log == nil {
		log = zap.NewNop()
	}
	prefs, closeSettings, err := OpenSettings(ctx, env)
	if err != nil {
		return nil, err
	}

	cfg := analyzer.DefaultConfig()
	if env.FFTSize > 0 {
		cfg.FFTSize = env.FFTSize
	}

	s := store.New(store.Options{
		Element:      media.NewElement(),
		GraphFactory: media.NewGraphFactory(cfg),
		Settings:     prefs,
		Logger:       log,
	})
	p := &Player{
		Store:   s,
		Profile: HostProfile(env.Constrained),
		Log:     log,
		closers: []func() error{s.Close, closeSettings},
	}

	if fs, ok := prefs.(*settings.FileStore); ok {
		w, err := settings.NewWatcher(fs, s.ApplySettings, log)
		if err != nil {
			log.Warn("settings will not be reloaded from disk", zap.Error(err))
		} else {
			w.StartAsync()
			p.closers = append([]func() error{func() error { w.Stop(); return nil }}, p.closers...)
		}
	}
	if !media.AudioAvailable {
		log.Warn("this build has no audio output; playback requests will fail")
	}
	return p, nil
}

func (p *Player) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
