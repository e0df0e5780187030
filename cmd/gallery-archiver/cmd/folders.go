package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-gallery-archiver/internal/database"
	"go-gallery-archiver/internal/helpers"
	"go-gallery-archiver/internal/prompt"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage category folder mappings",
}

var foldersRenameCmd = &cobra.Command{
	Use:   "rename [OLD_NAME] [NEW_NAME]",
	Short: "Rename a destination folder and repoint its category mappings",
	Long: `Renames a folder under the download root and updates every category
mapping that points at it, so future crawls place items under the new
name without prompting again.`,
	Args: cobra.ExactArgs(2),
	RunE: runFoldersRename,
}

func init() {
	rootCmd.AddCommand(foldersCmd)
	foldersCmd.AddCommand(foldersRenameCmd)
}

func runFoldersRename(cmd *cobra.Command, args []string) error {
	oldName := args[0]
	newName := helpers.SanitizeFolderName(args[1])

	prompter := prompt.New(os.Stdin, os.Stdout)
	confirmed, err := prompter.Confirm(fmt.Sprintf("Rename folder %q to %q?", oldName, newName), false)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Rename cancelled.")
		return nil
	}

	return withStore(func(store *database.DB) error {
		affected, err := store.RenameFolder(oldName, newName)
		if err != nil {
			return err
		}

		oldPath := filepath.Join(globalConfig.DownloadRoot, oldName)
		newPath := filepath.Join(globalConfig.DownloadRoot, newName)
		if _, err := os.Stat(oldPath); err == nil {
			if err := os.Rename(oldPath, newPath); err != nil {
				return fmt.Errorf("mappings updated but renaming %s failed: %w", oldPath, err)
			}
		} else {
			log.WithField("path", oldPath).Debug("Folder not present on disk, only mappings updated")
		}

		fmt.Printf("Renamed %q to %q (%d mapping(s) updated).\n", oldName, newName, affected)
		return nil
	})
}
