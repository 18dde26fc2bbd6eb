package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"socroom/internal/roster"
)

// rosterCmd prints the effective roster after config and environment
// overrides, for debugging agent wiring.
var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Print the effective specialist roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := roster.Load(configPath)
		if err != nil {
			return err
		}
		for _, m := range reg.Members() {
			agent := m.AgentID
			if agent == "" {
				agent = "(not configured)"
			}
			fmt.Printf("%-12s %-16s %-20s %s\n", m.Role, m.Name, m.Title, agent)
			if len(m.Topics) > 0 {
				fmt.Printf("%-12s topics:   %s\n", "", strings.Join(m.Topics, ", "))
			}
			if len(m.Triggers) > 0 {
				fmt.Printf("%-12s triggers: %s\n", "", strings.Join(m.Triggers, ", "))
			}
		}
		return nil
	},
}
