package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/soundstage/cmd/common"
	playersettings "github.com/gigurra/soundstage/cmd/engine/settings"
	"github.com/spf13/cobra"
)

type Params struct {
	Volume boa.Optional[float64] `help:"Set the volume, 0 to 1."`
	Rate   boa.Optional[float64] `help:"Set the playback rate, 0.25 to 4."`
	Muted  boa.Optional[bool]    `help:"Mute or unmute."`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:         "settings",
		Short:       "Show or change the persisted player settings",
		Long:        "Without flags, prints the persisted volume, playback rate and mute flag. With flags, updates them; a running player picks up file-backed changes immediately.",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := Run(cmd.Context(), params, os.Stdout); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "settings: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

// Update holds the fields to change; nil fields are kept.
type Update struct {
	Volume *float64
	Rate   *float64
	Muted  *bool
}

func (u Update) empty() bool {
	return u.Volume == nil && u.Rate == nil && u.Muted == nil
}

func Run(ctx context.Context, params *Params, out io.Writer) error {
	env := common.LoadEnv()
	store, closeFn, err := common.OpenSettings(ctx, env)
	if err != nil {
		return err
	}
	defer closeFn()

	var upd Update
	if params.Volume.HasValue() {
		upd.Volume = params.Volume.Value()
	}
	if params.Rate.HasValue() {
		upd.Rate = params.Rate.Value()
	}
	if params.Muted.HasValue() {
		upd.Muted = params.Muted.Value()
	}
	return Apply(ctx, store, upd, out)
}

// Apply loads the settings, changes them when upd has fields, and prints the result.
func Apply(ctx context.Context, store playersettings.Store, upd Update, out io.Writer) error {
	cur, err := store.Load(ctx)
	if err != nil {
		// unreadable settings are replaced by defaults, as the player would
		_, _ = fmt.Fprintf(os.Stderr, "settings: %v\n", err)
	}

	if !upd.empty() {
		next := cur
		if upd.Volume != nil {
			next.Volume = *upd.Volume
		}
		if upd.Rate != nil {
			if r := *upd.Rate; r < 0.25 || r > 4 {
				return fmt.Errorf("rate %v outside [0.25, 4]", r)
			}
			next.PlaybackRate = *upd.Rate
		}
		if upd.Muted != nil {
			next.IsMuted = *upd.Muted
		}
		next = next.Normalize(cur)
		if err := store.Save(ctx, next); err != nil {
			return err
		}
		cur = next
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(cur)
}
