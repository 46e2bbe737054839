package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var epgCmd = &cobra.Command{
	Use:   "epg",
	Short: "Generate and update the XMLTV guide",
}

var epgCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Rebuild every channel's schedule from scratch and write the EPG file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a := newApp(cfg)
		return a.refresher.RebuildAll(cmd.Context())
	},
}

var epgUpdateCmd = &cobra.Command{
	Use:   "update <channel-id>",
	Short: "Refresh one channel's schedule per its configured strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a := newApp(cfg)

		// A roll refresh needs the previously published schedule; restore
		// it from the EPG file since this is a fresh process.
		if err := a.primeFromEPGFile(time.Now()); err != nil {
			return err
		}

		return a.refresher.RefreshChannel(cmd.Context(), args[0])
	},
}

func init() {
	epgCmd.AddCommand(epgCreateCmd)
	epgCmd.AddCommand(epgUpdateCmd)
	rootCmd.AddCommand(epgCmd)
}
