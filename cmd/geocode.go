package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve a single address with the configured provider",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		geo, err := initGeocoder(cfg)
		if err != nil {
			return err
		}

		address := strings.Join(args, " ")
		res, err := geo.Resolve(cmd.Context(), address)
		if err != nil {
			return fmt.Errorf("geocode %q: %w", address, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.6f,%.6f\t(%s)\n", address, res.Latitude, res.Longitude, res.Source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
