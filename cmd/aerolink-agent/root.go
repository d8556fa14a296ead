package main

import "github.com/spf13/cobra"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aerolink-agent",
	Short: "AeroLink beacon telemetry agent",
	Long: `aerolink-agent ingests K1/K2 beacon telemetry from a local decoder,
correlates identity and measurement beacons into flight records, and
delivers signed batches to the AeroLink collection endpoint.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./config.yaml, /etc/aerolink/config.yaml)")
}
