package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tabkeep/cmd/tabkeep/tui"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Aliases: []string{"reconcile"},
	Short:   "Find and remove orphaned records and files",
	Long: `Compare the saved page index with the snapshot directory.

An orphan record points at a file that no longer exists. An orphan file
is an .mhtml file in the snapshot directory that no record points at.

Without flags both kinds are removed. --records or --files limit the
cleanup to one kind. --dry-run only lists what was found, and -i opens a
picker to choose individual orphans.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var (
	cleanupDryRun      bool
	cleanupInteractive bool
	cleanupRecords     bool
	cleanupFiles       bool
)

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupDryRun, "dry-run", "d", false, "list orphans without removing them")
	cleanupCmd.Flags().BoolVarP(&cleanupInteractive, "interactive", "i", false, "pick orphans to remove")
	cleanupCmd.Flags().BoolVar(&cleanupRecords, "records", false, "remove orphan records")
	cleanupCmd.Flags().BoolVar(&cleanupFiles, "files", false, "remove orphan files")
	rootCmd.AddCommand(cleanupCmd)
}

// cleanupKinds resolves the --records and --files flags. Neither means both.
func cleanupKinds(records, files bool) (bool, bool) {
	if !records && !files {
		return true, true
	}
	return records, files
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}

	if cleanupInteractive {
		src := newPickerSource(c, func(ctx context.Context) ([]output.PageInfo, error) {
			report, err := c.Reconcile(ctx)
			if err != nil {
				return nil, err
			}
			return output.OrphansResult(*report, fileSize, time.Now()).Pages, nil
		})
		return tui.Run(tui.Options{Title: "orphans", Source: src, DryRun: cleanupDryRun})
	}

	report, err := c.Reconcile(ctx)
	if err != nil {
		return err
	}
	found := output.OrphansResult(*report, fileSize, time.Now())
	found.Source = c.BaseURL()
	found.DaemonUp = true

	if cleanupDryRun || len(found.Pages) == 0 {
		return writeResult(found)
	}

	records, files := cleanupKinds(cleanupRecords, cleanupFiles)
	res, err := c.Cleanup(ctx, records, files)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range res.Results {
		if !r.Success {
			failed++
			printError("%s: %s", r.FilePath, r.Error)
		}
	}
	printInfo("Removed %d of %d orphans (%d records, %d files found)",
		len(res.Results)-failed, len(res.Results), len(res.OrphanRecords), len(res.OrphanFiles))
	if failed > 0 {
		return fmt.Errorf("%d removals failed", failed)
	}
	return nil
}
