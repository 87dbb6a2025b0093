package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List loaded stubs in match order",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().Bool("full-id", false, "Show full stub IDs")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry(newLogger(cmd))
	if err != nil {
		return err
	}
	fullID := viper.GetBool("list.full_id")

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tNAME")
	for i, info := range reg.List() {
		id := info.ID.Short()
		if fullID {
			id = string(info.ID)
		}
		name := info.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, id, name)
	}
	return w.Flush()
}
