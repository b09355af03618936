package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/soundstage/cmd/common"
	"github.com/gigurra/soundstage/cmd/engine/library"
	"github.com/gigurra/soundstage/cmd/engine/visual"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type Params struct {
	Sources []string `pos:"true" required:"true" help:"Audio files, directories, playlists, URLs or sample packs."`
	Modes   string   `short:"m" help:"Comma separated visualizer modes to render side by side." default:"bars,waveform,lightning,flame,water,tendrils"`
	Frames  int      `short:"n" help:"Frames to render per mode." default:"90"`
	Out     string   `short:"o" help:"Output directory; one sub-directory per mode." default:"frames"`
	Width   int      `help:"Frame width in logical pixels." default:"480"`
	Height  int      `help:"Frame height in logical pixels." default:"270"`
	Scale   float64  `help:"Device pixel ratio." default:"1"`
	FPS     int      `help:"Frames per second." default:"30"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:         "render",
		Short:       "Play sources and write visualizer frames as PNG",
		Long:        "Plays the first source and renders every requested visualizer at once from the same analyser, each with its own loop, writing numbered PNG frames.",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := Run(cmd.Context(), params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "render: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func Run(ctx context.Context, params *Params) error {
	env := common.LoadEnv()
	log, err := common.NewLogger(common.LogConfig{Level: env.LogLevel, File: env.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	modes, err := ParseModes(params.Modes)
	if err != nil {
		return err
	}
	tracks, err := library.FromArgs(ctx, params.Sources, library.Options{CacheDir: common.CacheDir(), Logger: log})
	if err != nil {
		return err
	}

	player, err := common.OpenPlayer(ctx, env, log)
	if err != nil {
		return err
	}
	defer player.Close()

	s := player.Store
	s.SetQueue(tracks, 0)
	if err := s.PlayTrack(ctx, tracks[0], nil); err != nil {
		return fmt.Errorf("cannot play %s: %w", tracks[0].Title, err)
	}
	defer s.Pause()

	counts, err := Render(ctx, s.Bridge(), modes, Options{
		Dir:     params.Out,
		Frames:  params.Frames,
		Width:   params.Width,
		Height:  params.Height,
		Scale:   params.Scale,
		FPS:     params.FPS,
		Profile: player.Profile,
		Logger:  log,
	})
	report(os.Stdout, params.Out, modes, counts)
	return err
}

// ParseModes reads a comma separated mode list, dropping duplicates.
func ParseModes(s string) ([]visual.Mode, error) {
	var modes []visual.Mode
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := visual.ParseMode(part)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	modes = lo.Uniq(modes)
	if len(modes) == 0 {
		return nil, fmt.Errorf("no modes given")
	}
	return modes, nil
}

// Options shape one render run.
type Options struct {
	Dir           string
	Frames        int
	Width, Height int
	Scale         float64
	FPS           int
	Profile       visual.Profile
	Logger        *zap.Logger
}

// Render drives one loop per mode, all reading src, until each has written
// opts.Frames frames. It returns the frame count per mode.
func Render(ctx context.Context, src visual.Snapshotter, modes []visual.Mode, opts Options) (map[visual.Mode]int, error) {
	fps := lo.Ternary(opts.FPS > 0, opts.FPS, visual.DefaultFPS)
	interval := time.Second / time.Duration(fps)

	type job struct {
		loop    *visual.Loop
		surface *visual.PNGSurface
	}
	jobs := make(map[visual.Mode]job, len(modes))
	for _, m := range modes {
		surface, err := visual.NewPNGSurface(filepath.Join(opts.Dir, string(m)), string(m), opts.Width, opts.Height, opts.Scale)
		if err != nil {
			return nil, err
		}
		loop, err := visual.NewLoop(visual.LoopOptions{
			Source:  src,
			Surface: surface,
			Mode:    m,
			Profile: opts.Profile,
			FPS:     fps,
			Logger:  opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		loop.SetActive(true)
		jobs[m] = job{loop: loop, surface: surface}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for j.surface.Frames() < opts.Frames {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					if _, err := j.loop.Step(now); err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	counts := make(map[visual.Mode]int, len(jobs))
	for m, j := range jobs {
		counts[m] = j.surface.Frames()
	}
	return counts, firstErr
}

func report(w io.Writer, dir string, modes []visual.Mode, counts map[visual.Mode]int) {
	for _, m := range modes {
		_, _ = fmt.Fprintf(w, "%-10s %4d frames in %s\n", m, counts[m], filepath.Join(dir, string(m)))
	}
}
