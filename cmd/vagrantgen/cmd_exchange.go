package main

import (
	"fmt"
	"os"

	"al.essio.dev/pkg/shellescape"
	"github.com/spf13/cobra"

	"github.com/battlewithbytes/vagrantgen/internal/model"
	"github.com/battlewithbytes/vagrantgen/internal/store"
	"github.com/battlewithbytes/vagrantgen/internal/ui"
)

var (
	exportFormat    string
	importPublicIPs bool
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", store.FormatJSON, "json, yaml or vagrantfile")
	importCmd.Flags().BoolVar(&importPublicIPs, "allow-public-ips", false, "accept public addresses on static private networks")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <project-id|name>",
	Short: "Export a project to the exports directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		p, err := env.store.FindProject(args[0])
		if err != nil {
			return err
		}
		out, err := env.store.Export(p, exportFormat)
		if err != nil {
			return err
		}
		fmt.Println(ui.Green.Render("✓") + " Exported " + ui.White.Render(p.Name) + " as " + out.Format)
		fmt.Println("  " + ui.Label("File:") + " " + out.File)
		if out.Format == store.FormatVagrantfile {
			fmt.Println()
			fmt.Println("Bring it up with:")
			fmt.Println("  " + ui.Cyan.Render("cd "+shellescape.Quote(out.Dir)+" && vagrant up"))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create a project from a JSON or YAML export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := store.FormatForFile(args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		p, err := env.store.Import(data, format, model.ValidationOptions{AllowPublicIPs: importPublicIPs})
		if err != nil {
			return err
		}
		fmt.Printf("%s Imported %s (%s, %d VMs)\n",
			ui.Green.Render("✓"), ui.White.Render(p.Name), ui.Dim.Render(p.ID), len(p.VMs))
		return nil
	},
}
