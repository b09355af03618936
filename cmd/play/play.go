package play

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/gigurra/soundstage/cmd/common"
	"github.com/gigurra/soundstage/cmd/engine/library"
	"github.com/gigurra/soundstage/cmd/engine/visual"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type Params struct {
	Sources []string `pos:"true" required:"true" help:"Audio files, directories, playlists, URLs or sample packs to queue."`
	Mode    string   `short:"m" help:"Initial visualizer (bars, waveform, lightning, flame, water, tendrils)." default:"bars"`
	Notify  bool     `help:"Show a desktop notification when the track changes." default:"false"`
	Shuffle bool     `short:"s" help:"Start with shuffle on." default:"false"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:   "play",
		Short: "Play sources in the terminal with a live visualizer",
		Long: `Queues the given sources and plays them with a terminal UI.

Keys: space play/pause, left/right seek 10s, up/down volume, m mute,
n/p next/previous, j/k select, s shuffle, r repeat, a autoplay, v next visualizer,
/ filter the queue, enter play selected, d remove selected, c copy source, q quit.`,
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := Run(cmd.Context(), params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "play: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func Run(ctx context.Context, params *Params) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("play needs a terminal; use serve for headless playback")
	}
	mode, err := visual.ParseMode(params.Mode)
	if err != nil {
		return err
	}

	env := common.LoadEnv()
	logFile := env.LogFile
	if logFile == "" {
		logFile = common.DefaultLogPath()
	}
	// the terminal belongs to the UI, so logs only go to the file
	log, err := common.NewLogger(common.LogConfig{Level: env.LogLevel, File: logFile, Quiet: true})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	player, err := common.OpenPlayer(ctx, env, log)
	if err != nil {
		return err
	}
	defer player.Close()

	tracks, err := library.FromArgs(ctx, params.Sources, library.Options{CacheDir: common.CacheDir(), Logger: log})
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return errors.New("no playable tracks found")
	}

	s := player.Store
	s.SetQueue(tracks, 0)
	s.SetShuffle(params.Shuffle)
	if err := s.PlayTrack(ctx, tracks[0], nil); err != nil {
		log.Warn("could not start playback", zap.Error(err))
	}

	scr := &screen{}
	scr.resize(76, visualRows)
	loop, err := visual.NewLoop(visual.LoopOptions{
		Source:  s.Bridge(),
		Surface: &visual.FuncSurface{SizeFunc: scr.Size, Fn: scr.present},
		Mode:    mode,
		Profile: player.Profile,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := loop.Run(ctx); err != nil {
			log.Warn("visualizer stopped", zap.Error(err))
		}
	}()

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	m := model{
		ctx:     ctx,
		player:  s,
		sub:     sub,
		loop:    loop,
		screen:  scr,
		profile: player.Profile,
		copy:    clipboard.WriteAll,
	}
	if params.Notify {
		m.notify = func(title, body string) {
			go func() {
				if err := beeep.Notify(title, body, ""); err != nil {
					log.Debug("notification", zap.Error(err))
				}
			}()
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
