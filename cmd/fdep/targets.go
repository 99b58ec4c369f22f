package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the targets declared in deploy.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if reg.Count() == 0 {
			app.console.Warn("No targets configured")
			return nil
		}

		app.console.Section("Targets")
		for _, name := range reg.Names() {
			t, err := reg.Get(name)
			if err != nil {
				return err
			}
			app.console.Row(name, fmt.Sprintf("%s@%s", t.User, t.HostsString()))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show TARGET",
	Short: "Print the resolved configuration of a target as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		t, err := reg.Get(args[0])
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to render target: %w", err)
		}
		return enc.Close()
	},
}
