package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/pagewarden/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the rule catalog",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the active rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := rules.LoadFile(viper.GetString("rules.file"))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "catalog %s (%d rules)\n", catalog.Version(), catalog.Len())
		for _, r := range catalog.Rules() {
			fmt.Fprintf(out, "%-8s %-36s %-25s %-8s %s\n", r.ID, r.Type, r.Category, r.Severity, r.Target)
		}
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Compile a rules file without starting the monitor",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("rules.file")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no rules file given")
		}
		catalog, err := rules.LoadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, catalog %s with %d rules\n", path, catalog.Version(), catalog.Len())
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
}
