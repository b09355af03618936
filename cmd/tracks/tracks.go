package tracks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/soundstage/cmd/common"
	"github.com/gigurra/soundstage/cmd/engine/library"
	"github.com/gigurra/soundstage/cmd/engine/media"
	"github.com/gigurra/soundstage/cmd/engine/queue"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type Params struct {
	Sources []string `pos:"true" required:"true" help:"Audio files, directories, playlists, URLs or sample packs."`
	JSON    bool     `help:"Print the playlist as JSON." default:"false"`
}

func Cmd() *cobra.Command {
	return boa.CmdT[Params]{
		Use:         "tracks",
		Short:       "List the playlist the given sources resolve to",
		ParamEnrich: common.DefaultParamEnricher(),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := Run(cmd.Context(), params, os.Stdout); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "tracks: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func Run(ctx context.Context, params *Params, out io.Writer) error {
	tracks, err := library.FromArgs(ctx, params.Sources, library.Options{CacheDir: common.CacheDir()})
	if err != nil {
		return err
	}
	if params.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tracks)
	}
	Render(out, tracks, termWidth())
	return nil
}

// Render writes a numbered table. width 0 means unbounded.
func Render(out io.Writer, tracks []queue.Track, width int) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	if width > 0 {
		t.SetAllowedRowLength(width)
	}

	t.AppendHeader(table.Row{"#", "Title", "Artist", "Source"})
	for i, tr := range tracks {
		source := tr.SourceURI
		if media.IsRemote(source) {
			source = text.FgCyan.Sprint(source)
		}
		t.AppendRow(table.Row{i + 1, tr.Title, tr.Artist, source})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d tracks", len(tracks))})
	t.Render()
}

func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return w
	}
	return 0
}
