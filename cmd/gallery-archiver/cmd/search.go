package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-gallery-archiver/internal/index"
)

var searchLimitFlag int

var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search archived items by their metadata",
	Long: `Searches the full-text index over archived items. Plain terms match the
prompt; field queries like '+model:baseA' or '+loras:foxLora' narrow by
metadata field.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimitFlag, "limit", "l", 20, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	searchIndex, err := index.OpenOrCreate(globalConfig.IndexPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := searchIndex.Close(); err != nil {
			log.WithError(err).Warn("Failed to close search index")
		}
	}()

	hits, err := searchIndex.Search(args[0], searchLimitFlag)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tPATH\tPROMPT")
	for _, hit := range hits {
		prompt := hit.Prompt
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		fmt.Fprintf(w, "%.2f\t%s\t%s\n", hit.Score, hit.StoredPath, prompt)
	}
	return w.Flush()
}
