package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tabkeep/pkg/tabkeep/output"
	"github.com/jamesainslie/tabkeep/pkg/tabkeep/types"
)

var profilesCmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"profile", "ls"},
	Short:   "List browser profiles with their tabs",
	Long: `List the profiles known to the registry.

Hidden profiles are left out unless --all is given or the persisted
profile filter is "all". The profile passed with --current is always
listed first.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

var profilesHideCmd = &cobra.Command{
	Use:   "hide ID",
	Short: "Hide a profile from default listings",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setHidden(cmd, args[0], true) },
}

var profilesUnhideCmd = &cobra.Command{
	Use:   "unhide ID",
	Short: "Show a hidden profile again",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setHidden(cmd, args[0], false) },
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a profile record",
	Long: `Remove a profile record. Pages saved from the profile are kept; remove
them with 'tabkeep pages delete'.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfilesDelete,
}

var profilesNameCmd = &cobra.Command{
	Use:   "name ID",
	Short: "Print the name of a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesName,
}

var (
	profilesAll     bool
	profilesCurrent string
)

func init() {
	profilesCmd.Flags().BoolVarP(&profilesAll, "all", "a", false, "include hidden profiles")
	profilesCmd.Flags().StringVar(&profilesCurrent, "current", "", "profile to mark as current")

	profilesCmd.AddCommand(profilesHideCmd)
	profilesCmd.AddCommand(profilesUnhideCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesNameCmd)
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	var filter types.FilterMode
	if profilesAll {
		filter = types.FilterAll
	}

	views, err := c.ListProfiles(cmd.Context(), profilesCurrent, filter)
	if err != nil {
		return err
	}

	r := output.ProfilesResult(views)
	r.Source = c.BaseURL()
	r.DaemonUp = true
	if root, err := c.SavePath(cmd.Context()); err == nil {
		r.SnapshotRoot = root
	}
	return writeResult(r)
}

func setHidden(cmd *cobra.Command, id string, hidden bool) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	if err := c.SetVisibility(cmd.Context(), id, hidden); err != nil {
		return err
	}
	if hidden {
		printInfo("Profile %s hidden", id)
	} else {
		printInfo("Profile %s visible", id)
	}
	return nil
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	if err := c.DeleteProfile(cmd.Context(), args[0]); err != nil {
		return err
	}
	printInfo("Profile %s deleted", args[0])
	return nil
}

func runProfilesName(cmd *cobra.Command, args []string) error {
	c, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	name, err := c.ProfileName(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(name)
	return nil
}
