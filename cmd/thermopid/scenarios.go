package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Agrid-Dev/thermopid/internal/simulation"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the scenario presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data := pterm.TableData{{"Name", "Description", "Fixed fields"}}
		for _, name := range simulation.ListScenarios() {
			sc, err := simulation.ParseScenario(name)
			if err != nil {
				return err
			}
			fixed := "-"
			if len(sc.Locked) > 0 {
				fixed = strings.Join(sc.Locked, ", ")
			}
			data = append(data, []string{sc.Name, sc.Description, fixed})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
		return err
	},
}
