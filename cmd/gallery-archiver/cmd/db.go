package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-gallery-archiver/internal/database"
	"go-gallery-archiver/internal/index"
	"go-gallery-archiver/internal/models"
	"go-gallery-archiver/internal/prompt"
)

var dbResetYesFlag bool

// dbCmd represents the base command for database operations
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and manage the archive database",
}

var dbFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List items whose archival failed, with reasons",
	RunE:  runDbFailures,
}

var dbDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List items attempted more than once",
	Long: `Lists items with more than one attempt row, most-repeated first. Attempts
on the same item across runs usually mean the item kept failing, or its
identifier changed upstream.`,
	RunE: runDbDuplicates,
}

var dbViewCmd = &cobra.Command{
	Use:   "view",
	Short: "List every recorded attempt",
	RunE:  runDbView,
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all attempt records, mappings and the search index",
	Long: `Wipes every download record and category mapping, and deletes the search
index. Archived files on disk are left untouched. Asks for confirmation
unless --yes is given.`,
	RunE: runDbReset,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbFailuresCmd)
	dbCmd.AddCommand(dbDuplicatesCmd)
	dbCmd.AddCommand(dbViewCmd)
	dbCmd.AddCommand(dbResetCmd)
	dbResetCmd.Flags().BoolVarP(&dbResetYesFlag, "yes", "y", false, "Skip the confirmation prompt")
}

// withStore opens the database around one command invocation.
func withStore(fn func(store *database.DB) error) error {
	store, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("Failed to close database")
		}
	}()
	return fn(store)
}

func runDbFailures(cmd *cobra.Command, args []string) error {
	return withStore(func(store *database.DB) error {
		failures, err := store.ListFailures()
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			fmt.Println("No failed attempts recorded.")
			return nil
		}
		printRecords(failures, true)
		return nil
	})
}

func runDbView(cmd *cobra.Command, args []string) error {
	return withStore(func(store *database.DB) error {
		records, err := store.ListAll()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No attempts recorded.")
			return nil
		}
		printRecords(records, false)
		return nil
	})
}

func runDbDuplicates(cmd *cobra.Command, args []string) error {
	return withStore(func(store *database.DB) error {
		groups, err := store.ListDuplicateGroups()
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicate attempts recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ITEM\tATTEMPTS\tLAST SEEN")
		for _, group := range groups {
			lastSeen := ""
			if len(group.CreatedAt) > 0 {
				lastSeen = group.CreatedAt[0].Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", group.ItemID, group.Count, lastSeen)
		}
		return w.Flush()
	})
}

func runDbReset(cmd *cobra.Command, args []string) error {
	if !dbResetYesFlag {
		prompter := prompt.New(os.Stdin, os.Stdout)
		confirmed, err := prompter.Confirm("Delete ALL attempt records, category mappings and the search index?", false)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	return withStore(func(store *database.DB) error {
		if err := store.ResetAll(); err != nil {
			return err
		}
		if err := index.Delete(globalConfig.IndexPath); err != nil {
			log.WithError(err).Warn("Failed to delete search index")
		}
		fmt.Println("Database reset.")
		return nil
	})
}

func printRecords(records []models.DownloadRecord, withReason bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if withReason {
		fmt.Fprintln(w, "ITEM\tSTATUS\tWHEN\tREASON")
	} else {
		fmt.Fprintln(w, "ITEM\tSTATUS\tWHEN\tPATH")
	}
	for _, record := range records {
		last := record.StoredPath
		if withReason {
			last = record.FailureReason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", record.ItemID, record.Status, record.CreatedAt.Format(time.RFC3339), last)
	}
	w.Flush()
}
