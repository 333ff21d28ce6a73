package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/battlewithbytes/vagrantgen/internal/footer"
	"github.com/battlewithbytes/vagrantgen/internal/ui"
)

var footerWidth int

func init() {
	footerShowCmd.Flags().IntVarP(&footerWidth, "width", "w", 80, "word wrap width")
	footerCmd.AddCommand(footerListCmd)
	footerCmd.AddCommand(footerShowCmd)
	rootCmd.AddCommand(footerCmd)
}

var footerCmd = &cobra.Command{
	Use:   "footer",
	Short: "Inspect the markdown pages linked from the UI footer",
}

var footerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List footer pages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l := footer.List(cfg.Footer.Dir)
		for _, e := range l.Errors {
			fmt.Println(ui.Yellow.Render("warning:") + " " + e)
		}
		if len(l.Files) == 0 {
			fmt.Printf("No footer pages in %s\n", cfg.Footer.Dir)
		} else {
			rows := make([][]string, 0, len(l.Files))
			for _, f := range l.Files {
				rows = append(rows, []string{
					f.Filename,
					strconv.FormatInt(f.Size, 10),
					f.LastModified.Local().Format(time.DateTime),
				})
			}
			fmt.Println(ui.Table([]string{"FILE", "BYTES", "MODIFIED"}, rows))
		}
		if len(l.Excluded) > 0 {
			fmt.Println(ui.Dim.Render(fmt.Sprintf("%d excluded: %v", len(l.Excluded), l.Excluded)))
		}
		return nil
	},
}

var footerShowCmd = &cobra.Command{
	Use:   "show <page>",
	Short: "Render a footer page in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := footer.Read(cfg.Footer.Dir, args[0])
		if err != nil {
			return err
		}
		if p.IsExternal {
			fmt.Println(ui.Label("Links to:") + " " + ui.Cyan.Render(p.ExternalURL))
		}
		out, err := footer.Terminal(p, footerWidth)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}
