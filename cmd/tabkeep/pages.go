package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tabkeep/cmd/tabkeep/tui"
	"github.com/jamesainslie/tabkeep/pkg/client"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

var pagesCmd = &cobra.Command{
	Use:     "pages",
	Aliases: []string{"saved"},
	Short:   "List saved pages",
	Long: `List every saved page snapshot, newest first.

With -i, pages are shown in an interactive picker where selected pages
can be deleted.`,
	Args: cobra.NoArgs,
	RunE: runPages,
}

var pagesDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete saved pages by id",
	Long:  `Delete saved pages and their snapshot files. Ids may be comma separated.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPagesDelete,
}

var pagesSaveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Register an MHTML capture as a saved page",
	Long: `Register an MHTML file captured outside the browser extension as a
saved page of a profile.`,
	Args: cobra.ExactArgs(1),
	RunE: runPagesSave,
}

var (
	pagesInteractive bool
	pagesDryRun      bool

	saveProfile string
	saveURL     string
	saveTitle   string
)

func init() {
	pagesCmd.Flags().BoolVarP(&pagesInteractive, "interactive", "i", false, "pick pages to delete")
	pagesCmd.Flags().BoolVarP(&pagesDryRun, "dry-run", "d", false, "don't delete anything in the picker")

	pagesSaveCmd.Flags().StringVar(&saveProfile, "profile", "", "profile id the page was open in")
	pagesSaveCmd.Flags().StringVar(&saveURL, "url", "", "page URL")
	pagesSaveCmd.Flags().StringVar(&saveTitle, "title", "", "page title")
	_ = pagesSaveCmd.MarkFlagRequired("profile")
	_ = pagesSaveCmd.MarkFlagRequired("url")

	pagesCmd.AddCommand(pagesDeleteCmd)
	pagesCmd.AddCommand(pagesSaveCmd)
	rootCmd.AddCommand(pagesCmd)
}

func runPages(cmd *cobra.Command, _ []string) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	if pagesInteractive {
		src := newPickerSource(c, func(ctx context.Context) ([]output.PageInfo, error) {
			recs, err := c.ListSavedPages(ctx)
			if err != nil {
				return nil, err
			}
			return output.PagesResult(recs, time.Now()).Pages, nil
		})
		return tui.Run(tui.Options{Title: "saved pages", Source: src, DryRun: pagesDryRun})
	}

	recs, err := c.ListSavedPages(cmd.Context())
	if err != nil {
		return err
	}
	r := output.PagesResult(recs, time.Now())
	r.Source = c.BaseURL()
	r.DaemonUp = true
	if root, err := c.SavePath(cmd.Context()); err == nil {
		r.SnapshotRoot = root
	}
	return writeResult(r)
}

func runPagesDelete(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	results, err := c.DeleteSavedPages(cmd.Context(), parseCommaSeparated(args...), nil)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
			printError("%s: %s", res.ID, res.Error)
			continue
		}
		printVerbose("deleted %s (%s)", res.ID, res.FilePath)
	}

	printInfo("Deleted %d of %d pages", len(results)-failed, len(results))
	if failed > 0 {
		return fmt.Errorf("%d deletions failed", failed)
	}
	return nil
}

func runPagesSave(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	rec, err := c.SavePage(cmd.Context(), saveProfile, saveURL, saveTitle, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return err
	}
	printInfo("Saved %s as %s", rec.URL, rec.FilePath)
	return nil
}

// pickerSource feeds the interactive picker from the daemon.
type pickerSource struct {
	c    *client.Client
	load func(ctx context.Context) ([]output.PageInfo, error)
}

func newPickerSource(c *client.Client, load func(ctx context.Context) ([]output.PageInfo, error)) *pickerSource {
	return &pickerSource{c: c, load: load}
}

// Load implements tui.Source.
func (s *pickerSource) Load(ctx context.Context) ([]output.PageInfo, error) {
	return s.load(ctx)
}

// Delete implements tui.Source with one bulk request: indexed pages go by
// id, stray files by path.
func (s *pickerSource) Delete(ctx context.Context, items []output.PageInfo) ([]types.DeleteResult, error) {
	var ids, paths []string
	for _, item := range items {
		if item.ID != "" {
			ids = append(ids, item.ID)
		} else {
			paths = append(paths, item.Path)
		}
	}
	return s.c.DeleteSavedPages(ctx, ids, paths)
}
