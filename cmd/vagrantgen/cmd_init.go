package main

import (
	"github.com/spf13/cobra"

	"github.com/battlewithbytes/vagrantgen/internal/installer"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return installer.Run(configPath)
	},
}
