package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/config"
)

var savePathCmd = &cobra.Command{
	Use:   "save-path [PATH]",
	Short: "Show or change the snapshot directory",
	Long: `Show the directory new page snapshots are written to, or change it.

The directory is created if missing and must be writable. Pages saved
before the change keep their files in the old directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSavePath,
}

var settingsCmd = &cobra.Command{
	Use:   "settings [KEY [VALUE]]",
	Short: "Show or change persisted settings",
	Long: `Show all persisted settings, one setting, or change a setting.

Known keys:
  snapshotRootPath   directory new snapshots are written to
  profileFilter      default profile list filter (active or all)`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSettings,
}

func init() {
	rootCmd.AddCommand(savePathCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSavePath(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 0 {
		root, err := c.SavePath(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(root)
		return nil
	}

	path, err := config.ExpandPath(args[0])
	if err != nil {
		return err
	}
	if path, err = filepath.Abs(path); err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := c.SetSavePath(cmd.Context(), path); err != nil {
		return err
	}
	printInfo("Save path set to %s", path)
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 2 {
		if err := c.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		printInfo("%s = %s", args[0], args[1])
		return nil
	}

	all, err := c.Settings(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		v, ok := all[args[0]]
		if !ok {
			return fmt.Errorf("unknown setting %q", args[0])
		}
		fmt.Println(v)
		return nil
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-18s %s\n", k, all[k])
	}
	return nil
}
