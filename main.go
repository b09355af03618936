package main

import (
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gigurra/soundstage/cmd/play"
	"github.com/gigurra/soundstage/cmd/render"
	"github.com/gigurra/soundstage/cmd/serve"
	"github.com/gigurra/soundstage/cmd/settings"
	"github.com/gigurra/soundstage/cmd/tracks"
	"github.com/spf13/cobra"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "soundstage",
		Short:   "Label player with live visualizers",
		Version: appVersion(),
		SubCmds: []*cobra.Command{
			play.Cmd(),
			serve.Cmd(),
			render.Cmd(),
			tracks.Cmd(),
			settings.Cmd(),
		},
	}.Run()
}

func appVersion() string {
	bi, hasBuildInfo := debug.ReadBuildInfo()
	if !hasBuildInfo {
		return "unknown-(no build info)"
	}

	versionString := bi.Main.Version
	if versionString == "" {
		versionString = "unknown-(no version)"
	}

	return versionString
}
