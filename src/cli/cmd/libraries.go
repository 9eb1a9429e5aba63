package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var librariesAll bool

var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "List the libraries of the selected set",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if librariesAll {
			for _, set := range index.SetNames() {
				fmt.Fprintf(w, "%s:\n", set)
				for _, name := range index.Sets[set] {
					fmt.Fprintf(w, "  %s\n", name)
				}
			}
			return nil
		}

		names, err := index.Libraries(setName)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(w, name)
		}
		return nil
	},
}

func init() {
	librariesCmd.Flags().BoolVar(&librariesAll, "all", false, "list every set")
	rootCmd.AddCommand(librariesCmd)
}
