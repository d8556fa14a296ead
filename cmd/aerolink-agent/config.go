package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aerolink-systems/aerolink-agent/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:          "init [path]",
	Short:        "Write the reference config file with default values",
	Args:         cobra.MaximumNArgs(1),
	RunE:         runConfigInit,
	SilenceUsage: true,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
