package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/manifest"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled deletions and cleanups",
	Long: `List what the daemon deleted, newest first.

Every page deletion and orphan cleanup is journaled with the URL, title
and file of each page it touched. Use -o json or -o yaml for the raw
entries.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show the pages one operation touched",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop entries older than manifest.retention_days",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

// shownPages caps the page list of history show in table form.
const shownPages = 50

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries (0 for all)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openManifest opens the journal the daemon writes to. The CLI only reads
// and expires it.
func openManifest(cfg *config.Config) (*manifest.Manifest, error) {
	dir := cfg.Manifest.Path
	if dir == "" {
		var err error
		if dir, err = config.ManifestDir(); err != nil {
			return nil, fmt.Errorf("manifest directory: %w", err)
		}
	}
	return manifest.New(dir)
}

func runHistory(_ *cobra.Command, _ []string) error {
	m, err := openManifest(currentConfig())
	if err != nil {
		return err
	}
	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if ok, err := writeRaw(os.Stdout, outputFormat, entries); ok {
		return err
	}
	if len(entries) == 0 {
		printInfo("No history entries found.")
		return nil
	}
	return writeHistory(os.Stdout, entries, time.Now())
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	m, err := openManifest(currentConfig())
	if err != nil {
		return err
	}
	entry, err := m.Get(args[0])
	if err != nil {
		return err
	}

	if ok, err := writeRaw(os.Stdout, outputFormat, entry); ok {
		return err
	}
	return writeEntry(os.Stdout, entry)
}

func runHistoryClean(_ *cobra.Command, _ []string) error {
	cfg := currentConfig()
	m, err := openManifest(cfg)
	if err != nil {
		return err
	}

	days := cfg.Manifest.RetentionDays
	if days <= 0 {
		days = config.DefaultRetentionDays
	}
	printVerbose("expiring history entries older than %d days", days)

	removed, err := m.Cleanup(days)
	if err != nil {
		return fmt.Errorf("clean history: %w", err)
	}
	printInfo("Removed %d history entries older than %d days.", removed, days)
	return nil
}

// writeRaw encodes v for the structured formats and reports whether it
// handled the format.
func writeRaw(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writeHistory(w io.Writer, entries []manifest.Entry, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOPERATION\tWHEN\tPAGES\tFAILED\tFREED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.ID, e.Operation, humanize.RelTime(e.Timestamp, now, "ago", "from now"),
			e.Summary.TotalPages, e.Summary.Failed, types.FormatSize(e.Summary.TotalBytes))
	}
	return tw.Flush()
}

func writeEntry(w io.Writer, e *manifest.Entry) error {
	fmt.Fprintf(w, "%s  %s at %s\n", e.ID, e.Operation, e.Timestamp.Local().Format(time.DateTime))
	fmt.Fprintf(w, "%d pages, %d failed, %s freed\n\n",
		e.Summary.TotalPages, e.Summary.Failed, types.FormatSize(e.Summary.TotalBytes))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIZE\tPROFILE\tPAGE\tFILE")
	for i, p := range e.Pages {
		if i == shownPages {
			fmt.Fprintf(tw, "\t\t... %d more\t\n", len(e.Pages)-shownPages)
			break
		}
		page := p.URL
		switch {
		case p.Error != "":
			page = "FAILED: " + p.Error
		case page == "":
			page = "(unrecorded file)"
		}
		profile := p.ProfileID
		if profile == "" {
			profile = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", types.FormatSize(p.Size), profile, page, p.FilePath)
	}
	return tw.Flush()
}
