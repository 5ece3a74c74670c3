package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/logging"
)

var (
	resetDB  bool
	override bool
)

func init() {
	scanCmd.Flags().BoolVar(&resetDB, "reset", false, "empty every table before loading the first root")
	scanCmd.Flags().BoolVar(&override, "override-db", false, "delete the database file before opening it")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Crawl the given roots (or ROOT_DIRECTORIES) and load them into the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots := cfg.RootDirectories
		if len(args) > 0 {
			roots = roots[:0:0]
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("failed to resolve root %s: %w", arg, err)
				}
				roots = append(roots, abs)
			}
		}
		if len(roots) == 0 {
			return fmt.Errorf("no root directories given; pass them as arguments or set ROOT_DIRECTORIES")
		}

		db, err := openIndex(cfg, override, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		orch := newOrchestrator(cfg, db, nil, logger)
		scanLog := logger.Tag(logging.TagScan)
		progress := func(fraction float64, label string) {
			scanLog.Info("progress", zap.String("folder", label), zap.Float64("fraction", fraction))
		}

		summaries, err := orch.Scan(cmd.Context(), roots, resetDB, progress)
		if reportErr := writeReport(cfg, summaries, logger); reportErr != nil {
			scanLog.Warn("scan report not written", zap.Error(reportErr))
		}
		if err != nil {
			if len(summaries) > 0 {
				scanLog.Warn("scan stopped partway, earlier roots stay committed",
					zap.Int("committed_roots", len(summaries)), zap.Bool("reset_applied", resetDB))
			}
			return partialScanError(err, summaries, resetDB)
		}

		for _, s := range summaries {
			inserted := s.Inserted()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d acquisitions, %d previews, %d HD, %d EF inserted (%d skipped)\n",
				s.Root, inserted.Acquisitions, inserted.Previews, inserted.Intermediates, inserted.Finals, s.Skipped.Total())
		}
		return nil
	},
}

// partialScanError names the roots a failed multi-root scan already committed;
// with reset, the index was emptied before the first of them.
func partialScanError(err error, committed []*catalog.Summary, reset bool) error {
	if len(committed) == 0 {
		return err
	}
	roots := make([]string, 0, len(committed))
	for _, s := range committed {
		roots = append(roots, s.Root)
	}
	if reset {
		return fmt.Errorf("%w (reset was applied and roots %s were committed before the failure; rerun with --reset to rebuild the index)",
			err, strings.Join(roots, ", "))
	}
	return fmt.Errorf("%w (roots %s were committed before the failure)", err, strings.Join(roots, ", "))
}
