// Command pseudotv synthesizes live broadcast channels from on-demand video
// sources: it builds per-channel program schedules, serves an XMLTV guide
// and M3U lineup, and streams each channel as continuous MPEG-TS.
package main

import (
	"os"

	"github.com/pseudotv/pseudotv/cmd/pseudotv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
