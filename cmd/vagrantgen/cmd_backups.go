package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/battlewithbytes/vagrantgen/internal/ui"
)

var backupsKeep int

func init() {
	backupsCleanupCmd.Flags().IntVar(&backupsKeep, "keep", -1, "backups to keep per project (default storage.backup_keep)")
	backupsCmd.AddCommand(backupsCleanupCmd)
	rootCmd.AddCommand(backupsCmd)
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage project backups",
}

var backupsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune old backups and those of deleted projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		keep := env.cfg.Storage.BackupKeep
		if cmd.Flags().Changed("keep") {
			keep = backupsKeep
		}
		removed, err := env.store.CleanupBackups(keep)
		if err != nil {
			return err
		}
		fmt.Printf("%s Removed %d backup(s), keeping %d per project\n", ui.Green.Render("✓"), removed, keep)
		return nil
	},
}
