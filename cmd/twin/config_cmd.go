package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"twin/internal/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and print the resolved configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := root.load(v); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range config.Dump(v) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cobra.CheckErr(config.BindFlags(v, cmd.Flags()))
	return cmd
}
