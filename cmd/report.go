package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/repository"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print what the index currently holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openIndex(cfg, false, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		gormDB, err := database.InitGormDB(db, logger)
		if err != nil {
			return err
		}
		return printIndex(cmd.OutOrStdout(), repository.NewCatalogRepository(gormDB), cfg.DatabasePath)
	},
}

func printIndex(w io.Writer, repo repository.CatalogRepositoryInterface, dbPath string) error {
	counts, err := repo.Counts()
	if err != nil {
		return err
	}
	versions, err := repo.Versions()
	if err != nil {
		return err
	}
	unprocessed, err := repo.ListUnprocessed()
	if err != nil {
		return err
	}
	incomplete, err := repo.ListIncompleteFinals()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Database: %s\n", dbPath)
	fmt.Fprintf(w, "  Holo files:            %d\n", counts.Acquisitions)
	fmt.Fprintf(w, "  Preview files:         %d\n", counts.Previews)
	fmt.Fprintf(w, "  HD folders:            %d\n", counts.Intermediates)
	fmt.Fprintf(w, "  EF folders:            %d\n", counts.Finals)
	fmt.Fprintf(w, "  Unprocessed holo:      %d\n", len(unprocessed))
	fmt.Fprintf(w, "  Incomplete EF folders: %d\n", len(incomplete))
	if len(versions) > 0 {
		fmt.Fprintf(w, "  Versions:              %s\n", strings.Join(versions, ", "))
	}
	return nil
}
