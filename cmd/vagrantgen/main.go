package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/ui"
	"github.com/battlewithbytes/vagrantgen/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "vagrantgen",
	Short:         "vagrantgen: design Vagrant environments and generate Vagrantfiles",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Long = ui.Green.Render("vagrantgen") + " " + ui.Cyan.Render(version.Version) + "\n" +
		ui.Dim.Render("Stores multi-VM project definitions and renders them to Vagrantfiles, from a web UI or the command line.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red.Render("Error:")+" "+err.Error())
		os.Exit(1)
	}
}
