package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/battlewithbytes/vagrantgen/internal/ui"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of generations to show (0 for all)")
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(historyCmd)
}

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"ls"},
	Short:   "List stored projects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		projects, err := env.store.ListProjects()
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects yet. Create one from the web UI or with 'vagrantgen import'.")
			return nil
		}
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			backups, err := env.store.Backups(p.ID)
			if err != nil {
				return err
			}
			rows = append(rows, []string{
				p.Name,
				p.ID,
				strconv.Itoa(p.VMCount),
				ui.Status(p.DeploymentStatus),
				strconv.Itoa(backups),
				p.UpdatedAt.Local().Format(time.DateTime),
			})
		}
		fmt.Println(ui.Table([]string{"NAME", "ID", "VMS", "STATUS", "BACKUPS", "UPDATED"}, rows))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <project-id|name>",
	Short: "Show a project's Vagrantfile generations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		hist, err := openHistory(env.cfg)
		if err != nil {
			return err
		}
		if hist == nil {
			return errors.New("history is disabled (history.enabled: false)")
		}
		defer hist.Close()

		p, err := env.store.FindProject(args[0])
		if err != nil {
			return err
		}
		entries, err := hist.List(p.ID, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No generations recorded for %s.\n", p.Name)
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			valid := ui.Green.Render("yes")
			if !e.IsValid {
				valid = ui.Red.Render("no")
			}
			rows = append(rows, []string{
				e.CreatedAt.Local().Format(time.DateTime),
				e.Source,
				strconv.Itoa(e.VMCount),
				valid,
				strconv.Itoa(len(e.Warnings)),
				e.SHA256[:12],
			})
		}
		fmt.Println(ui.Table([]string{"WHEN", "SOURCE", "VMS", "VALID", "WARNINGS", "SHA256"}, rows))
		return nil
	},
}
